package blockv

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/GriffinCanCode/vatomsync/internal/domain/region"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/client"
	"github.com/GriffinCanCode/vatomsync/internal/shared/types"
)

// Platform endpoints
const (
	pathInventoryHash  = "/v1/user/vatom/inventory/hash"
	pathInventoryIndex = "/v1/user/vatom/inventory/index"
	pathInventory      = "/v1/user/vatom/inventory"
	pathGetVatoms      = "/v1/user/vatom/get"
	pathGeoDiscover    = "/v1/vatom/geodiscover"
	pathFaceChanges    = "/v1/faces/changes"
	pathActionChanges  = "/v1/actions/changes"
)

// geoDiscoverLimit caps the vatoms returned for one bounding box
const geoDiscoverLimit = 10000

var _ API = (*Platform)(nil)

// Platform implements API over the REST client
type Platform struct {
	client *client.Client
}

// NewPlatform creates the API backed by c
func NewPlatform(c *client.Client) *Platform {
	return &Platform{client: c}
}

func (p *Platform) InventoryHash(ctx context.Context) (string, error) {
	v, err := p.client.RequestJSON(ctx, client.Endpoint{
		Name:   "inventory_hash",
		Method: http.MethodGet,
		Path:   pathInventoryHash,
	})
	if err != nil {
		return "", err
	}
	hash := v.String("hash")
	if hash == "" {
		return "", &ParseError{Kind: "inventory hash", Field: "hash", Msg: "is missing"}
	}
	return hash, nil
}

func (p *Platform) InventoryIndex(ctx context.Context, cursor string, limit int) (IndexPage, error) {
	query := map[string]string{"limit": strconv.Itoa(limit)}
	if cursor != "" {
		query["next_token"] = cursor
	}
	v, err := p.client.RequestJSON(ctx, client.Endpoint{
		Name:   "inventory_index",
		Method: http.MethodGet,
		Path:   pathInventoryIndex,
		Query:  query,
	})
	if err != nil {
		return IndexPage{}, err
	}
	return ParseIndex(v)
}

func (p *Platform) GetVatoms(ctx context.Context, ids []string) (Objects, error) {
	if len(ids) == 0 {
		return Objects{}, nil
	}
	return p.objects(ctx, client.Endpoint{
		Name:   "get_vatoms",
		Method: http.MethodPost,
		Path:   pathGetVatoms,
		Body:   map[string]any{"ids": ids},
	})
}

func (p *Platform) InventoryPage(ctx context.Context, parentID string, page, limit int) (Objects, error) {
	return p.objects(ctx, client.Endpoint{
		Name:   "inventory_page",
		Method: http.MethodPost,
		Path:   pathInventory,
		Body: map[string]any{
			"parent_id": parentID,
			"page":      page,
			"limit":     limit,
		},
	})
}

func (p *Platform) GeoDiscover(ctx context.Context, box types.BoundingBox) (Objects, error) {
	if err := box.Validate(); err != nil {
		return Objects{}, err
	}
	return p.objects(ctx, client.Endpoint{
		Name:   "geo_discover",
		Method: http.MethodPost,
		Path:   pathGeoDiscover,
		Body: map[string]any{
			"bottom_left": map[string]float64{"lat": box.BottomLeft.Lat, "lon": box.BottomLeft.Lon},
			"top_right":   map[string]float64{"lat": box.TopRight.Lat, "lon": box.TopRight.Lon},
			"filter":      "vatoms",
			"limit":       geoDiscoverLimit,
		},
	})
}

func (p *Platform) FaceChanges(ctx context.Context, templates []string, since time.Time) ([]Change, error) {
	return p.changes(ctx, "face_changes", pathFaceChanges, region.TypeFace, templates, since)
}

func (p *Platform) ActionChanges(ctx context.Context, templates []string, since time.Time) ([]Change, error) {
	return p.changes(ctx, "action_changes", pathActionChanges, region.TypeAction, templates, since)
}

func (p *Platform) changes(ctx context.Context, name, path, typ string, templates []string, since time.Time) ([]Change, error) {
	if len(templates) == 0 {
		return nil, nil
	}
	v, err := p.client.RequestJSON(ctx, client.Endpoint{
		Name:   name,
		Method: http.MethodPost,
		Path:   path,
		Body: map[string]any{
			"templates": templates,
			"since":     since.UnixMilli(),
		},
	})
	if err != nil {
		return nil, err
	}
	return ParseChanges(v, typ)
}

func (p *Platform) objects(ctx context.Context, ep client.Endpoint) (Objects, error) {
	v, err := p.client.RequestJSON(ctx, ep)
	if err != nil {
		return Objects{}, err
	}
	objs, err := ParseObjects(v)
	if err != nil {
		return Objects{}, fmt.Errorf("%s: %w", ep.Name, err)
	}
	return objs, nil
}
