// Package outbox is the mail delivery stub: outgoing mails are appended to a
// JSON-lines file that an operator or a relay process drains.
package outbox

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Baaaki/storyline/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Mail is one outgoing message.
type Mail struct {
	ID        string    `json:"id"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Outbox appends mails to a file, one JSON object per line.
type Outbox struct {
	filePath string
	file     *os.File
	mu       sync.Mutex
}

func New(filePath string) (*Outbox, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	return &Outbox{
		filePath: filePath,
		file:     file,
	}, nil
}

// Send appends mail and syncs the file. ID and CreatedAt are filled in when empty.
func (o *Outbox) Send(ctx context.Context, mail Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if mail.ID == "" {
		mail.ID = uuid.NewString()
	}
	if mail.CreatedAt.IsZero() {
		mail.CreatedAt = time.Now().UTC()
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	data, err := json.Marshal(mail)
	if err != nil {
		return err
	}

	if _, err := o.file.Write(append(data, '\n')); err != nil {
		logger.Log.Error("Outbox: failed to write mail",
			zap.String("mail_id", mail.ID),
			zap.Error(err),
		)
		return err
	}
	if err := o.file.Sync(); err != nil {
		logger.Log.Error("Outbox: failed to sync",
			zap.String("mail_id", mail.ID),
			zap.Error(err),
		)
		return err
	}

	logger.Log.Debug("Outbox: mail queued",
		zap.String("mail_id", mail.ID),
		zap.String("subject", mail.Subject),
	)
	return nil
}

// ReadAll returns every queued mail. Lines that do not parse are skipped.
func (o *Outbox) ReadAll() ([]Mail, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.readAllUnsafe()
}

// Remove drops delivered mails from the file.
func (o *Outbox) Remove(deliveredIDs []string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	all, err := o.readAllUnsafe()
	if err != nil {
		return err
	}

	delivered := make(map[string]bool, len(deliveredIDs))
	for _, id := range deliveredIDs {
		delivered[id] = true
	}

	if err := o.file.Close(); err != nil {
		return err
	}

	tempFile := o.filePath + ".tmp"
	f, err := os.Create(tempFile)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	remaining := 0
	for _, mail := range all {
		if delivered[mail.ID] {
			continue
		}
		data, err := json.Marshal(mail)
		if err != nil {
			f.Close()
			return err
		}
		w.Write(append(data, '\n'))
		remaining++
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	f.Sync()
	f.Close()

	if err := os.Rename(tempFile, o.filePath); err != nil {
		return err
	}

	// The old descriptor points at the replaced inode.
	newFile, err := os.OpenFile(o.filePath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	o.file = newFile

	logger.Log.Info("Outbox: delivered mails removed",
		zap.Int("removed", len(all)-remaining),
		zap.Int("remaining", remaining),
	)
	return nil
}

func (o *Outbox) readAllUnsafe() ([]Mail, error) {
	file, err := os.Open(o.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []Mail{}, nil
		}
		return nil, err
	}
	defer file.Close()

	var mails []Mail
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var mail Mail
		if err := json.Unmarshal(scanner.Bytes(), &mail); err != nil {
			continue
		}
		mails = append(mails, mail)
	}

	return mails, scanner.Err()
}

func (o *Outbox) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.file.Close()
}
