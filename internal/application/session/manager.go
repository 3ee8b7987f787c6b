// Package session 维护演示文稿的幻灯片历史，供生成提示做上下文参照
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"slide-content-api/internal/config"
	"slide-content-api/internal/domain/entity"
	apperrors "slide-content-api/pkg/errors"
	"slide-content-api/pkg/logger"
)

// Store 历史存储抽象；Redis 缓存实现之，未命中返回 redis.Nil
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Manager 幻灯片历史管理。历史有界：超出 max_slides 时丢弃最旧条目。
type Manager struct {
	cfg   config.SessionConfig
	store Store
}

func NewManager(cfg config.SessionConfig, store Store) *Manager {
	return &Manager{cfg: cfg, store: store}
}

func historyKey(presentationID string) string {
	return fmt.Sprintf("presentation:%s:history", presentationID)
}

// History 返回演示文稿的幻灯片历史，按页码升序；无历史返回空切片
func (m *Manager) History(ctx context.Context, presentationID string) ([]entity.SlideSummary, error) {
	if strings.TrimSpace(presentationID) == "" {
		return nil, apperrors.New(apperrors.CodeValidationFailed, "presentation id is required")
	}

	data, err := m.store.Get(ctx, historyKey(presentationID))
	if err != nil {
		if err == goredis.Nil {
			return []entity.SlideSummary{}, nil
		}
		return nil, fmt.Errorf("failed to load slide history: %w", err)
	}

	var history []entity.SlideSummary
	if err := json.Unmarshal(data, &history); err != nil {
		// 损坏的历史不应阻塞生成，当作空历史处理
		logger.Warn(ctx, "corrupt slide history, resetting", "presentation_id", presentationID)
		return []entity.SlideSummary{}, nil
	}
	return history, nil
}

// Append 追加一张幻灯片的摘要；超出上限时裁掉最旧的条目
func (m *Manager) Append(ctx context.Context, presentationID string, summary entity.SlideSummary) error {
	history, err := m.History(ctx, presentationID)
	if err != nil {
		return err
	}

	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}
	if summary.SlideNumber <= 0 {
		summary.SlideNumber = len(history) + 1
	}
	history = append(history, summary)

	if max := m.maxSlides(); len(history) > max {
		history = history[len(history)-max:]
	}

	return m.store.Set(ctx, historyKey(presentationID), history, m.cfg.TTL)
}

// Clear 删除演示文稿的全部历史
func (m *Manager) Clear(ctx context.Context, presentationID string) error {
	return m.store.Delete(ctx, historyKey(presentationID))
}

// ContextSummary 将历史压缩为提示可用的文本块；无历史返回空串
func (m *Manager) ContextSummary(ctx context.Context, presentationID string) (string, error) {
	if strings.TrimSpace(presentationID) == "" {
		return "", nil
	}
	history, err := m.History(ctx, presentationID)
	if err != nil {
		return "", err
	}
	if len(history) == 0 {
		return "", nil
	}

	lines := make([]string, 0, len(history)+1)
	lines = append(lines, "Slides already in this presentation:")
	for _, s := range history {
		line := fmt.Sprintf("- slide %d: %s", s.SlideNumber, s.Topic)
		if strings.TrimSpace(s.Summary) != "" {
			line += ": " + s.Summary
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}

func (m *Manager) maxSlides() int {
	if m.cfg.MaxSlides > 0 {
		return m.cfg.MaxSlides
	}
	return 20
}
