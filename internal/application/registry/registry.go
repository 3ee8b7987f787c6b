// Package registry 管理组件定义库：启动加载、运行时原子热更新
package registry

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"slide-content-api/internal/config"
	"slide-content-api/internal/domain/entity"
	apperrors "slide-content-api/pkg/errors"
	"slide-content-api/pkg/logger"
	"slide-content-api/pkg/metrics"
)

// indexFile component_index.json 的结构：component_id -> 相对文件路径
type indexFile struct {
	Components map[string]string `json:"components"`
}

// snapshot 一次加载产出的不可变视图；读路径全程无锁
type snapshot struct {
	components map[string]*entity.ComponentDefinition
	loadedAt   time.Time
}

// Registry 组件定义库。Get/List 读取当前快照，Reload 整体替换快照；
// 重载失败时保留旧快照继续服务。
type Registry struct {
	cfg config.RegistryConfig

	current atomic.Pointer[snapshot]
	// reloadMu 串行化重载，避免并发重载交叉覆盖
	reloadMu sync.Mutex
}

// NewRegistry 创建组件定义库；Eager 模式下立即加载并在失败时返回错误
func NewRegistry(cfg config.RegistryConfig) (*Registry, error) {
	r := &Registry{cfg: cfg}
	r.current.Store(&snapshot{components: map[string]*entity.ComponentDefinition{}})

	if cfg.Eager {
		if err := r.Reload(context.Background()); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Reload 重新加载全部组件定义并原子替换快照
func (r *Registry) Reload(ctx context.Context) error {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	start := time.Now()
	components, err := r.loadAll(ctx)
	if err != nil {
		metrics.RegistryReloadTotal.WithLabelValues("failure").Inc()
		logger.Error(ctx, "registry reload failed", err, "path", r.cfg.Path)
		return err
	}

	r.current.Store(&snapshot{components: components, loadedAt: time.Now()})
	metrics.RegistryReloadTotal.WithLabelValues("success").Inc()
	metrics.RegistryComponents.Set(float64(len(components)))
	logger.Info(ctx, "registry reloaded",
		"components", len(components),
		"path", r.cfg.Path,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// loadAll 读取目录（或索引文件指向的文件），解析并校验每个定义
func (r *Registry) loadAll(ctx context.Context) (map[string]*entity.ComponentDefinition, error) {
	files, err := r.definitionFiles()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, apperrors.Newf(apperrors.CodeRegistryLoadFailed,
			"no component definitions found in %s", r.cfg.Path)
	}

	components := make(map[string]*entity.ComponentDefinition, len(files))
	for _, file := range files {
		def, err := loadDefinition(file)
		if err != nil {
			return nil, err
		}
		if prev, ok := components[def.ID]; ok && prev != nil {
			return nil, apperrors.Newf(apperrors.CodeInvalidDefinition,
				"duplicate component_id %q in %s", def.ID, file)
		}
		components[def.ID] = def
		logger.Debug(ctx, "component definition loaded", "component_id", def.ID, "file", file)
	}
	return components, nil
}

// definitionFiles 返回待加载的定义文件列表；有索引文件时以索引为准
func (r *Registry) definitionFiles() ([]string, error) {
	if strings.TrimSpace(r.cfg.IndexFile) != "" {
		indexPath := filepath.Join(r.cfg.Path, r.cfg.IndexFile)
		if data, err := os.ReadFile(indexPath); err == nil {
			var idx indexFile
			if err := json.Unmarshal(data, &idx); err != nil {
				return nil, apperrors.Wrap(err, apperrors.CodeRegistryLoadFailed,
					"failed to parse component index")
			}
			files := make([]string, 0, len(idx.Components))
			for _, rel := range idx.Components {
				files = append(files, filepath.Join(r.cfg.Path, rel))
			}
			sort.Strings(files)
			return files, nil
		}
		// 索引缺失不是错误，退回目录扫描
	}

	entries, err := os.ReadDir(r.cfg.Path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeRegistryLoadFailed,
			"failed to read component directory")
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if e.Name() == "component_index.json" || e.Name() == r.cfg.IndexFile {
			continue
		}
		files = append(files, filepath.Join(r.cfg.Path, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// loadDefinition 解析并校验单个定义文件
func loadDefinition(path string) (*entity.ComponentDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeRegistryLoadFailed,
			"failed to read component definition").WithDetail(path)
	}

	var def entity.ComponentDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidDefinition,
			"failed to parse component definition").WithDetail(path)
	}
	if err := def.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidDefinition,
			"invalid component definition").WithDetail(path)
	}
	return &def, nil
}

// Get 按 ID 查找组件定义
func (r *Registry) Get(id string) (*entity.ComponentDefinition, error) {
	snap := r.current.Load()
	def, ok := snap.components[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeComponentNotFound, "component %q not found", id)
	}
	return def, nil
}

// List 返回全部组件定义，按 ID 升序
func (r *Registry) List() []*entity.ComponentDefinition {
	snap := r.current.Load()
	defs := make([]*entity.ComponentDefinition, 0, len(snap.components))
	for _, d := range snap.components {
		defs = append(defs, d)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}

// Count 当前快照中的组件数量
func (r *Registry) Count() int {
	return len(r.current.Load().components)
}

// LoadedAt 当前快照的加载时间；从未成功加载时为零值
func (r *Registry) LoadedAt() time.Time {
	return r.current.Load().loadedAt
}
