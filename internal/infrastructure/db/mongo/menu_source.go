package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/campusgate/access-core/internal/core/domain"
)

const collectionMenuNodes = "menu_nodes"

type menuDoc struct {
	ID                  string   `bson:"_id"`
	ParentID            string   `bson:"parent_id,omitempty"`
	Title               string   `bson:"title"`
	Icon                string   `bson:"icon,omitempty"`
	Route               string   `bson:"route,omitempty"`
	SortOrder           int      `bson:"sort_order"`
	RequiredPermissions []string `bson:"required_permissions,omitempty"`
}

// MenuSource loads the navigation tree rows. Implements ports.MenuSource.
type MenuSource struct {
	coll *mongo.Collection
}

func NewMenuSource(db *mongo.Database) *MenuSource {
	return &MenuSource{coll: db.Collection(collectionMenuNodes)}
}

func (m *MenuSource) LoadMenu(ctx context.Context) ([]domain.MenuNode, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := m.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("find menu nodes: %w", err)
	}
	var docs []menuDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode menu nodes: %w", err)
	}

	rows := make([]domain.MenuNode, 0, len(docs))
	for _, d := range docs {
		keys := make([]domain.PermissionKey, 0, len(d.RequiredPermissions))
		for _, tag := range d.RequiredPermissions {
			k, err := domain.ParsePermissionKey(tag)
			if err != nil {
				return nil, fmt.Errorf("%w: node %q: %v", domain.ErrInvalidMenuTree, d.ID, err)
			}
			keys = append(keys, k)
		}
		rows = append(rows, domain.MenuNode{
			ID:                  d.ID,
			ParentID:            d.ParentID,
			Title:               d.Title,
			Icon:                d.Icon,
			Route:               d.Route,
			SortOrder:           d.SortOrder,
			RequiredPermissions: keys,
		})
	}
	return rows, nil
}

// Upsert writes rows by id. Used to seed the default menu.
func (m *MenuSource) Upsert(ctx context.Context, rows []domain.MenuNode) error {
	if len(rows) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	models := make([]mongo.WriteModel, 0, len(rows))
	for _, n := range rows {
		tags := make([]string, len(n.RequiredPermissions))
		for i, k := range n.RequiredPermissions {
			tags[i] = k.String()
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": n.ID}).
			SetReplacement(menuDoc{
				ID:                  n.ID,
				ParentID:            n.ParentID,
				Title:               n.Title,
				Icon:                n.Icon,
				Route:               n.Route,
				SortOrder:           n.SortOrder,
				RequiredPermissions: tags,
			}).
			SetUpsert(true))
	}
	if _, err := m.coll.BulkWrite(ctx, models); err != nil {
		return fmt.Errorf("upsert menu nodes: %w", err)
	}
	return nil
}
