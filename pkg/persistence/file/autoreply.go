package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/zapllo/zaptick-sub010/pkg/models"
	"github.com/zapllo/zaptick-sub010/pkg/persistence"
)

// AutoReplyRepository handles auto-reply file operations.
type AutoReplyRepository struct {
	root string
	mu   sync.Mutex
}

// NewAutoReplyRepository creates a new auto-reply repository.
func NewAutoReplyRepository(root string) *AutoReplyRepository {
	return &AutoReplyRepository{root: root}
}

func (ar *AutoReplyRepository) dir() string {
	return path.Join(ar.root, "autoreplies")
}

// ActiveAutoReplies returns all active auto replies for a tenant channel.
func (ar *AutoReplyRepository) ActiveAutoReplies(_ context.Context, tenantID, channelID string) ([]*models.AutoReply, error) {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	all, err := ar.loadAll()
	if err != nil {
		return nil, err
	}

	var active []*models.AutoReply

	for _, reply := range all {
		if !reply.IsActive || reply.TenantID != tenantID {
			continue
		}

		if channelID != "" && reply.ChannelID != "" && reply.ChannelID != channelID {
			continue
		}

		active = append(active, reply)
	}

	return active, nil
}

// GetByID retrieves an auto reply by its ID from the file system.
func (ar *AutoReplyRepository) GetByID(_ context.Context, id string) (*models.AutoReply, error) {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	return ar.read(id)
}

// Save saves an auto reply to the file system.
func (ar *AutoReplyRepository) Save(_ context.Context, reply *models.AutoReply) error {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	now := time.Now().UTC()
	if reply.CreatedAt.IsZero() {
		reply.CreatedAt = now
	}

	reply.UpdatedAt = now

	return ar.write(reply)
}

// Delete removes an auto reply by its ID.
func (ar *AutoReplyRepository) Delete(_ context.Context, id string) error {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	filePath := path.Join(ar.dir(), id+".json")

	err := os.Remove(filePath)

	if err != nil && os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to delete auto reply %s: %w", id, err)
	}

	return nil
}

// IncrementUsage bumps the usage counter under the repository mutex.
func (ar *AutoReplyRepository) IncrementUsage(_ context.Context, id string) error {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	reply, err := ar.read(id)
	if err != nil {
		return err
	}

	reply.UsageCount++

	return ar.write(reply)
}

func (ar *AutoReplyRepository) loadAll() ([]*models.AutoReply, error) {
	root := os.DirFS(ar.dir())

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list auto reply files: %w", err)
	}

	replies := make([]*models.AutoReply, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		replyID := file[:len(file)-5]

		reply, err := ar.read(replyID)
		if err != nil {
			if persistence.IsAutoReplyNotFound(err) {
				continue
			}

			return nil, err
		}

		replies = append(replies, reply)
	}

	return replies, nil
}

func (ar *AutoReplyRepository) read(id string) (*models.AutoReply, error) {
	filePath := filepath.Clean(path.Join(ar.dir(), id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrAutoReplyNotFound
		}

		return nil, fmt.Errorf("failed to fetch auto reply %s: %w", id, err)
	}

	var reply models.AutoReply

	err = json.Unmarshal(body, &reply)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal auto reply %s: %w", id, err)
	}

	return &reply, nil
}

func (ar *AutoReplyRepository) write(reply *models.AutoReply) error {
	err := os.MkdirAll(ar.dir(), 0750)
	if err != nil {
		return fmt.Errorf("failed to create autoreplies directory: %w", err)
	}

	data, err := json.MarshalIndent(reply, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal auto reply %s: %w", reply.ID, err)
	}

	filePath := path.Join(ar.dir(), reply.ID+".json")

	return os.WriteFile(filePath, data, 0600)
}
