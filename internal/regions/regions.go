package regions

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sort"
	"sync"

	"github.com/gin-gonic/gin"

	"billing-backend/internal/shared/server/respond"
)

var ErrNotFound = errors.New("region not found")

// Region is a charging region bill runs are created for.
type Region struct {
	ID           string `json:"id"`
	DisplayName  string `json:"displayName"`
	NaldRegionID int    `json:"naldRegionId"`
}

// Repo defines read operations for regions.
type Repo interface {
	List(ctx context.Context) ([]Region, error)
	GetByID(ctx context.Context, id string) (Region, error)
}

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Region
}

// NewMemoryRepo constructs a MemoryRepo holding the given regions.
func NewMemoryRepo(regions ...Region) *MemoryRepo {
	r := &MemoryRepo{data: make(map[string]Region, len(regions))}
	for _, region := range regions {
		r.data[region.ID] = region
	}
	return r
}

// Names returns a region id to display name map.
func (r *MemoryRepo) Names() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.data))
	for id, region := range r.data {
		out[id] = region.DisplayName
	}
	return out
}

// List returns regions ordered by display name.
func (r *MemoryRepo) List(ctx context.Context) ([]Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Region, 0, len(r.data))
	for _, region := range r.data {
		out = append(out, region)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].DisplayName < out[j].DisplayName
	})
	return out, nil
}

// GetByID returns a region by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Region, error) {
	if err := ctx.Err(); err != nil {
		return Region{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	region, ok := r.data[id]
	if !ok {
		return Region{}, ErrNotFound
	}
	return region, nil
}

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// List returns regions ordered by display name.
func (r *PGRepo) List(ctx context.Context) ([]Region, error) {
	const query = `
SELECT id, display_name, nald_region_id
FROM regions
ORDER BY display_name`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Region
	for rows.Next() {
		var region Region
		if err := rows.Scan(&region.ID, &region.DisplayName, &region.NaldRegionID); err != nil {
			return nil, err
		}
		out = append(out, region)
	}
	return out, rows.Err()
}

// GetByID returns a region by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Region, error) {
	const query = `
SELECT id, display_name, nald_region_id
FROM regions
WHERE id = $1`
	var region Region
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&region.ID, &region.DisplayName, &region.NaldRegionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Region{}, ErrNotFound
		}
		return Region{}, err
	}
	return region, nil
}

// Handler serves the region list used by the setup wizard.
type Handler struct {
	Repo Repo
}

// NewHandler constructs a Handler.
func NewHandler(repo Repo) *Handler {
	return &Handler{Repo: repo}
}

// RegisterRoutes attaches region routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/regions", h.list)
}

func (h *Handler) list(c *gin.Context) {
	list, err := h.Repo.List(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list regions", nil)
		return
	}
	if list == nil {
		list = []Region{}
	}
	respond.OK(c, list)
}

// DevRegions seeds in-memory mode with the eight charging regions.
func DevRegions() []Region {
	return []Region{
		{ID: "b1f6f3a4-0001-4b5e-9c1a-000000000001", DisplayName: "Anglian", NaldRegionID: 1},
		{ID: "b1f6f3a4-0002-4b5e-9c1a-000000000002", DisplayName: "Midlands", NaldRegionID: 2},
		{ID: "b1f6f3a4-0003-4b5e-9c1a-000000000003", DisplayName: "North East", NaldRegionID: 3},
		{ID: "b1f6f3a4-0004-4b5e-9c1a-000000000004", DisplayName: "North West", NaldRegionID: 4},
		{ID: "b1f6f3a4-0005-4b5e-9c1a-000000000005", DisplayName: "South West", NaldRegionID: 5},
		{ID: "b1f6f3a4-0006-4b5e-9c1a-000000000006", DisplayName: "Southern", NaldRegionID: 6},
		{ID: "b1f6f3a4-0007-4b5e-9c1a-000000000007", DisplayName: "Thames", NaldRegionID: 7},
		{ID: "b1f6f3a4-0008-4b5e-9c1a-000000000008", DisplayName: "EA Wales", NaldRegionID: 8},
	}
}
