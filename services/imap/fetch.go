package imap

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/mailsignal/mailsignal/interfaces"
	"github.com/mailsignal/mailsignal/internal/enum"
	"github.com/mailsignal/mailsignal/internal/tracing"
)

const selectTimeout = 30 * time.Second

// FetchRecent returns the most recent limit messages in a folder,
// newest first. It tries a server-side search for all messages and
// falls back to a sequence range derived from the folder's message
// count when the search fails. One bad message never aborts the batch.
func (s *ConnectionManager) FetchRecent(ctx context.Context, accountID, folder string, limit int) ([]*interfaces.RawMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ConnectionManager.FetchRecent")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, accountID)
	span.LogFields(tracingLog.String("folder", folder), tracingLog.Int("limit", limit))

	if limit <= 0 {
		limit = 50
	}

	c, err := s.getClient(accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	c.Timeout = selectTimeout
	mbox, err := c.Select(folder, true)
	c.Timeout = 0
	if err != nil {
		err = errors.Wrapf(err, "error selecting folder %s", folder)
		s.handleFetchError(accountID, err)
		tracing.TraceErr(span, err)
		return nil, err
	}

	if mbox.Messages == 0 {
		return []*interfaces.RawMessage{}, nil
	}

	seqSet := s.recentSeqSet(c, mbox.Messages, limit)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchBodyStructure,
		imap.FetchUid,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)

	c.Timeout = fetchTimeout
	go func() {
		done <- c.Fetch(seqSet, items, messages)
	}()

	results := make([]*interfaces.RawMessage, 0, limit)
	for msg := range messages {
		raw, extractErr := extractRawMessage(accountID, folder, msg, section)
		if extractErr != nil {
			// Parse failures are isolated: log and drop this one message
			s.log.Warnf("[%s][%s] dropping unparseable message seq %d: %v",
				accountID, folder, msg.SeqNum, extractErr)
			continue
		}
		results = append(results, raw)
	}
	c.Timeout = 0

	if err = <-done; err != nil {
		err = errors.Wrap(err, "error fetching messages")
		s.handleFetchError(accountID, err)
		tracing.TraceErr(span, err)
		return nil, err
	}

	results = sortAndCap(results, limit)

	span.LogFields(tracingLog.Int("result.count", len(results)))
	return results, nil
}

// recentSeqSet picks the sequence numbers to fetch: server-side search
// when the server cooperates, otherwise the trailing range
// max(1, total-limit+1)..total.
func (s *ConnectionManager) recentSeqSet(c *client.Client, total uint32, limit int) *imap.SeqSet {
	seqSet := new(imap.SeqSet)

	c.Timeout = selectTimeout
	seqNums, err := c.Search(imap.NewSearchCriteria())
	c.Timeout = 0

	if err != nil || len(seqNums) == 0 {
		from, to := fallbackSeqRange(total, limit)
		seqSet.AddRange(from, to)
		return seqSet
	}

	sort.Slice(seqNums, func(i, j int) bool { return seqNums[i] < seqNums[j] })
	if len(seqNums) > limit {
		seqNums = seqNums[len(seqNums)-limit:]
	}
	for _, seq := range seqNums {
		seqSet.AddNum(seq)
	}
	return seqSet
}

// fallbackSeqRange derives the trailing window of a folder when the
// server-side search is unavailable
func fallbackSeqRange(total uint32, limit int) (uint32, uint32) {
	from := uint32(1)
	if total > uint32(limit) {
		from = total - uint32(limit) + 1
	}
	return from, total
}

// sortAndCap orders a fetched batch newest first, higher sequence
// number breaking date ties, and bounds it at limit
func sortAndCap(results []*interfaces.RawMessage, limit int) []*interfaces.RawMessage {
	sort.SliceStable(results, func(i, j int) bool {
		di, dj := rawDate(results[i]), rawDate(results[j])
		if di.Equal(dj) {
			return results[i].SeqNum > results[j].SeqNum
		}
		return di.After(dj)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

func rawDate(raw *interfaces.RawMessage) time.Time {
	if raw.Envelope != nil {
		return raw.Envelope.Date
	}
	return time.Time{}
}

func (s *ConnectionManager) handleFetchError(accountID string, err error) {
	if isConnectionError(err) {
		s.clientsMutex.Lock()
		delete(s.clients, accountID)
		s.clientsMutex.Unlock()
		s.setStatus(accountID, enum.ConnectionDisconnected, err.Error())
		return
	}
	s.setStatus(accountID, enum.ConnectionDegraded, err.Error())
}

func extractRawMessage(accountID, folder string, msg *imap.Message, section *imap.BodySectionName) (*interfaces.RawMessage, error) {
	if msg == nil {
		return nil, errors.New("nil message")
	}

	raw := &interfaces.RawMessage{
		AccountID: accountID,
		Folder:    folder,
		UID:       msg.Uid,
		SeqNum:    msg.SeqNum,
		Envelope:  msg.Envelope,
		Structure: msg.BodyStructure,
	}
	for _, flag := range msg.Flags {
		raw.Flags = append(raw.Flags, string(flag))
	}

	if body := msg.GetBody(section); body != nil {
		literal, err := io.ReadAll(body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read message body")
		}
		raw.Literal = literal
	}

	return raw, nil
}
