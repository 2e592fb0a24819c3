package inbound

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/mail"

	"github.com/charmbracelet/log"
	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// Message is the header block of one unseen message.
type Message struct {
	UID    imap.UID
	Header mail.Header
}

// Mailbox is the part of an IMAP account the poller uses.
type Mailbox interface {
	FetchUnseen(ctx context.Context) ([]Message, error)
	MarkSeen(ctx context.Context, uids []imap.UID) error
}

// IMAPMailbox opens a fresh TLS session per call.
type IMAPMailbox struct {
	address  string
	username string
	password string
	mailbox  string
}

// NewIMAPMailbox expects address as host:port; an empty mailbox means INBOX.
func NewIMAPMailbox(address, username, password, mailbox string) *IMAPMailbox {
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return &IMAPMailbox{
		address:  address,
		username: username,
		password: password,
		mailbox:  mailbox,
	}
}

func (m *IMAPMailbox) connect() (*imapclient.Client, error) {
	host, _, err := net.SplitHostPort(m.address)
	if err != nil {
		return nil, fmt.Errorf("imap: invalid address %q: %w", m.address, err)
	}

	client, err := imapclient.DialTLS(m.address, &imapclient.Options{
		TLSConfig: &tls.Config{ServerName: host},
	})
	if err != nil {
		return nil, fmt.Errorf("imap: connect: %w", err)
	}

	if err := client.Login(m.username, m.password).Wait(); err != nil {
		client.Close()
		return nil, fmt.Errorf("imap: login: %w", err)
	}
	return client, nil
}

// FetchUnseen returns the headers of every message without the \Seen flag.
// Headers are fetched with PEEK so reading does not mark them.
func (m *IMAPMailbox) FetchUnseen(ctx context.Context) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if _, err := client.Select(m.mailbox, nil).Wait(); err != nil {
		return nil, fmt.Errorf("imap: select %s: %w", m.mailbox, err)
	}

	searchData, err := client.UIDSearch(&imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap: search unseen: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID: true,
		BodySection: []*imap.FetchItemBodySection{{
			Specifier: imap.PartSpecifierHeader,
			Peek:      true,
		}},
	})

	var messages []Message
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		data, err := msg.Collect()
		if err != nil {
			log.Warn("Skipping inbound message", "error", err)
			continue
		}

		for _, section := range data.BodySection {
			if len(section.Bytes) == 0 {
				continue
			}
			parsed, err := mail.ReadMessage(bytes.NewReader(section.Bytes))
			if err != nil {
				log.Warn("Unparseable inbound header", "uid", data.UID, "error", err)
				break
			}
			messages = append(messages, Message{UID: data.UID, Header: parsed.Header})
			break
		}
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, fmt.Errorf("imap: fetch: %w", err)
	}
	return messages, nil
}

func (m *IMAPMailbox) MarkSeen(ctx context.Context, uids []imap.UID) error {
	if len(uids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := m.connect()
	if err != nil {
		return err
	}
	defer client.Close()

	if _, err := client.Select(m.mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("imap: select %s: %w", m.mailbox, err)
	}

	storeCmd := client.Store(imap.UIDSetNum(uids...), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)
	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("imap: mark seen: %w", err)
	}
	return nil
}
