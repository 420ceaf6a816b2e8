package classify

import (
	"context"
	"fmt"
	"sync"

	"story-processor/internal/domain/entity"
)

// ProjectCatalog is the Config Client read the ProjectIndex needs: the
// full project snapshot for the current run.
type ProjectCatalog interface {
	GetProjects(ctx context.Context) ([]entity.Project, error)
}

// ProjectIndex adapts a ProjectCatalog (the whole-snapshot Config Client
// contract) to ProjectLookup (the by-id contract a worker needs), loading
// the snapshot once per process and serving it from memory thereafter. A
// worker's job only carries a project id, so every dequeue
// needs the rest of the project looked up from the cached catalog.
type ProjectIndex struct {
	catalog ProjectCatalog

	mu     sync.RWMutex
	byID   map[int64]entity.Project
	loaded bool
}

// NewProjectIndex builds a ProjectIndex over catalog.
func NewProjectIndex(catalog ProjectCatalog) *ProjectIndex {
	return &ProjectIndex{catalog: catalog}
}

// GetProject returns the cached project for id, fetching the whole catalog
// on first use.
func (p *ProjectIndex) GetProject(ctx context.Context, id int64) (entity.Project, error) {
	if err := p.ensureLoaded(ctx); err != nil {
		return entity.Project{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	project, ok := p.byID[id]
	if !ok {
		return entity.Project{}, fmt.Errorf("project %d not found in catalog", id)
	}
	return project, nil
}

func (p *ProjectIndex) ensureLoaded(ctx context.Context) error {
	p.mu.RLock()
	if p.loaded {
		p.mu.RUnlock()
		return nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loaded {
		return nil
	}

	projects, err := p.catalog.GetProjects(ctx)
	if err != nil {
		return err
	}
	byID := make(map[int64]entity.Project, len(projects))
	for _, proj := range projects {
		byID[proj.ID] = proj
	}
	p.byID = byID
	p.loaded = true
	return nil
}

// Refresh forces the next GetProject call to re-fetch the catalog. Workers
// call this periodically so a long-lived process picks up project changes
// (new projects, updated min_confidence) without restarting.
func (p *ProjectIndex) Refresh() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded = false
}
