package imap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"mailsync-backend/internal/mail/domain"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// Message is one fetched message with its raw RFC 5322 body.
type Message struct {
	UID          uint32
	InternalDate time.Time
	Raw          []byte
}

// Batch is the result of FetchRecent.
type Batch struct {
	UIDValidity uint32
	Messages    []Message
}

// Client fetches recent messages from an IMAP mailbox, one connection per call.
type Client struct {
	addr    string
	useTLS  bool
	timeout time.Duration
}

// NewClient creates a Client for addr (host:port)
func NewClient(addr string, useTLS bool, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{addr: addr, useTLS: useTLS, timeout: timeout}
}

// FetchRecent returns up to count newest messages of mailbox. When uidValidity matches
// the mailbox, messages with UID <= afterUID are left out.
func (c *Client) FetchRecent(ctx context.Context, username, password, mailbox string, count int, afterUID, uidValidity uint32) (*Batch, error) {
	cl, err := c.dial()
	if err != nil {
		return nil, err
	}
	cl.Timeout = c.timeout
	stop := context.AfterFunc(ctx, func() { _ = cl.Terminate() })
	defer stop()
	defer cl.Logout()

	if err := cl.Login(username, password); err != nil {
		return nil, fmt.Errorf("%w: imap login: %v", domain.ErrUnauthorized, err)
	}

	// read-only, so fetching BODY[] does not set \Seen
	mbox, err := cl.Select(mailbox, true)
	if err != nil {
		return nil, fmt.Errorf("imap select %s: %w", mailbox, err)
	}

	batch := &Batch{UIDValidity: mbox.UidValidity}
	if mbox.Messages == 0 || count <= 0 {
		return batch, nil
	}

	from := uint32(1)
	if mbox.Messages > uint32(count) {
		from = mbox.Messages - uint32(count) + 1
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, mbox.Messages)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, count)
	done := make(chan error, 1)
	go func() {
		done <- cl.Fetch(seqSet, items, messages)
	}()

	skipKnown := uidValidity != 0 && uidValidity == mbox.UidValidity
	for msg := range messages {
		if skipKnown && msg.Uid <= afterUID {
			continue
		}
		raw, err := readBody(msg, section)
		if err != nil {
			continue
		}
		batch.Messages = append(batch.Messages, Message{
			UID:          msg.Uid,
			InternalDate: msg.InternalDate,
			Raw:          raw,
		})
	}

	if err := <-done; err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("imap fetch: %w", err)
	}
	return batch, nil
}

func (c *Client) dial() (*client.Client, error) {
	var (
		cl  *client.Client
		err error
	)
	if c.useTLS {
		cl, err = client.DialTLS(c.addr, nil)
	} else {
		cl, err = client.Dial(c.addr)
	}
	if err != nil {
		return nil, fmt.Errorf("IMAP connection error: %w", err)
	}
	return cl, nil
}

func readBody(msg *imap.Message, section *imap.BodySectionName) ([]byte, error) {
	lit := msg.GetBody(section)
	if lit == nil {
		for _, l := range msg.Body {
			lit = l
			break
		}
	}
	if lit == nil {
		return nil, errors.New("no body in fetch response")
	}
	return io.ReadAll(lit)
}
