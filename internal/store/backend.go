package store

import (
	"context"

	"github.com/zash3dit/zashedit/internal/timeline"
)

// Backend is the durable project storage. Loads return (nil, nil) for an
// unknown id. Insert and Update assign ids to children whose ID is 0 and
// write them back into p.
type Backend interface {
	ListProjects(ctx context.Context) ([]*timeline.Project, error)
	LoadProject(ctx context.Context, id int64) (*timeline.Project, error)
	InsertProject(ctx context.Context, p *timeline.Project) error
	UpdateProject(ctx context.Context, p *timeline.Project) (bool, error)
	DeleteProject(ctx context.Context, id int64) (bool, error)
}
