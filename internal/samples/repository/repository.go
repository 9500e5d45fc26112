package repository

import (
	"errors"

	"github.com/sampleflow/sampleflow/internal/samples/feed"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	Request *RequestRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB, changeFeed feed.Feed, logger *zap.Logger) *Repositories {
	return &Repositories{
		Request: NewRequestRepository(db, changeFeed, logger),
	}
}
