package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/campusgate/access-core/internal/core/domain"
	"github.com/campusgate/access-core/internal/core/ports"
)

const (
	collectionRoles           = "roles"
	collectionPermissions     = "permissions"
	collectionRolePermissions = "role_permissions"
	collectionUserRoles       = "user_roles"
	collectionSubscriptions   = "user_subscriptions"

	// oneActiveIndex enforces at most one active subscription per user.
	oneActiveIndex = "one_active_subscription_per_user"
)

type roleDoc struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	NameKey     string    `bson:"name_key"`
	SystemRole  string    `bson:"system_role"`
	Description string    `bson:"description,omitempty"`
	Active      bool      `bson:"active"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (d roleDoc) toDomain() domain.Role {
	tag, err := domain.ParseSystemRole(d.SystemRole)
	if err != nil {
		tag = domain.SystemRoleCustom
	}
	return domain.Role{
		ID:          d.ID,
		Name:        d.Name,
		SystemRole:  tag,
		Description: d.Description,
		Active:      d.Active,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type userRoleDoc struct {
	UserID     string     `bson:"user_id"`
	RoleID     string     `bson:"role_id"`
	AssignedBy string     `bson:"assigned_by,omitempty"`
	AssignedAt time.Time  `bson:"assigned_at"`
	ExpiresAt  *time.Time `bson:"expires_at"`
}

func (d userRoleDoc) toDomain() domain.UserRole {
	ur := domain.UserRole{
		UserID:     d.UserID,
		RoleID:     d.RoleID,
		AssignedBy: d.AssignedBy,
		AssignedAt: d.AssignedAt.UTC(),
	}
	if d.ExpiresAt != nil {
		at := d.ExpiresAt.UTC()
		ur.ExpiresAt = &at
	}
	return ur
}

type permissionDoc struct {
	ID          string    `bson:"_id"`
	Action      string    `bson:"action"`
	Resource    string    `bson:"resource"`
	Description string    `bson:"description,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
}

func (d permissionDoc) toDomain() domain.Permission {
	return domain.Permission{
		ID:          d.ID,
		Action:      domain.Action(d.Action),
		Resource:    domain.Resource(d.Resource),
		Description: d.Description,
		CreatedAt:   d.CreatedAt,
	}
}

type subscriptionDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Type      string    `bson:"type"`
	Status    string    `bson:"status"`
	StartAt   time.Time `bson:"start_at"`
	EndAt     time.Time `bson:"end_at"`
	Amount    float64   `bson:"amount"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d subscriptionDoc) toDomain() domain.Subscription {
	return domain.Subscription{
		ID:        d.ID,
		UserID:    d.UserID,
		Type:      domain.SubscriptionType(d.Type),
		Status:    domain.SubscriptionStatus(d.Status),
		StartAt:   d.StartAt,
		EndAt:     d.EndAt,
		Amount:    d.Amount,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// RBACRepository implements ports.RBACRepository on MongoDB. Link collections
// carry unique compound indexes and are written with upserts, so concurrent
// grants of the same link converge on one document.
type RBACRepository struct {
	roles         *mongo.Collection
	permissions   *mongo.Collection
	grants        *mongo.Collection
	assignments   *mongo.Collection
	subscriptions *mongo.Collection
	now           func() time.Time
}

var _ ports.RBACRepository = (*RBACRepository)(nil)

func NewRBACRepository(db *mongo.Database) *RBACRepository {
	return &RBACRepository{
		roles:         db.Collection(collectionRoles),
		permissions:   db.Collection(collectionPermissions),
		grants:        db.Collection(collectionRolePermissions),
		assignments:   db.Collection(collectionUserRoles),
		subscriptions: db.Collection(collectionSubscriptions),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the uniqueness constraints the store relies on.
func (r *RBACRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	plan := []struct {
		col     *mongo.Collection
		indexes []mongo.IndexModel
	}{
		{r.roles, []mongo.IndexModel{
			{Keys: bson.D{{Key: "name_key", Value: 1}}, Options: options.Index().SetUnique(true)},
		}},
		{r.permissions, []mongo.IndexModel{
			{Keys: bson.D{{Key: "action", Value: 1}, {Key: "resource", Value: 1}}, Options: options.Index().SetUnique(true)},
		}},
		{r.grants, []mongo.IndexModel{
			{Keys: bson.D{{Key: "role_id", Value: 1}, {Key: "permission_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		}},
		{r.assignments, []mongo.IndexModel{
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "role_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		}},
		{r.subscriptions, []mongo.IndexModel{
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}}},
			{
				Keys: bson.D{{Key: "user_id", Value: 1}},
				Options: options.Index().
					SetName(oneActiveIndex).
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"status": string(domain.SubscriptionActive)}),
			},
		}},
	}

	for _, p := range plan {
		if _, err := p.col.Indexes().CreateMany(ctx, p.indexes); err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", p.col.Name(), err)
		}
	}
	return nil
}

// ── Reads ────────────────────────────────────────────────────────────────────

func (r *RBACRepository) GetRolesForUser(ctx context.Context, userID string) ([]domain.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	roleIDs, err := r.assignedRoleIDs(ctx, userID)
	if err != nil || len(roleIDs) == 0 {
		return nil, err
	}

	cur, err := r.roles.Find(ctx,
		bson.M{"_id": bson.M{"$in": roleIDs}, "active": true},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find roles: %w", err)
	}
	var docs []roleDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}

	roles := make([]domain.Role, len(docs))
	for i, d := range docs {
		roles[i] = d.toDomain()
	}
	return roles, nil
}

func (r *RBACRepository) effectiveFilter(userID string) bson.M {
	return bson.M{
		"user_id": userID,
		"$or": bson.A{
			bson.M{"expires_at": nil},
			bson.M{"expires_at": bson.M{"$gt": r.now()}},
		},
	}
}

func (r *RBACRepository) assignedRoleIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := r.assignments.Distinct(ctx, "role_id", r.effectiveFilter(userID))
	if err != nil {
		return nil, fmt.Errorf("find role assignments: %w", err)
	}
	return toStrings(ids), nil
}

func (r *RBACRepository) ListUserRoles(ctx context.Context, userID string) ([]domain.UserRole, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.assignments.Find(ctx, r.effectiveFilter(userID),
		options.Find().SetSort(bson.D{{Key: "role_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list role assignments: %w", err)
	}
	var docs []userRoleDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode role assignments: %w", err)
	}
	out := make([]domain.UserRole, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

func (r *RBACRepository) GetPermissionsForUser(ctx context.Context, userID string) (domain.PermissionSet, error) {
	roles, err := r.GetRolesForUser(ctx, userID)
	if err != nil {
		return domain.PermissionSet{}, err
	}
	if len(roles) == 0 {
		return domain.NewPermissionSet(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	roleIDs := make([]string, len(roles))
	for i, role := range roles {
		roleIDs[i] = role.ID
	}
	permIDs, err := r.grants.Distinct(ctx, "permission_id", bson.M{"role_id": bson.M{"$in": roleIDs}})
	if err != nil {
		return domain.PermissionSet{}, fmt.Errorf("find grants: %w", err)
	}
	if len(permIDs) == 0 {
		return domain.NewPermissionSet(), nil
	}

	cur, err := r.permissions.Find(ctx, bson.M{"_id": bson.M{"$in": permIDs}})
	if err != nil {
		return domain.PermissionSet{}, fmt.Errorf("find permissions: %w", err)
	}
	var docs []permissionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return domain.PermissionSet{}, fmt.Errorf("decode permissions: %w", err)
	}

	set := domain.NewPermissionSet()
	for _, d := range docs {
		set.Add(d.toDomain())
	}
	return set, nil
}

func (r *RBACRepository) GetActiveSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := r.now()
	cur, err := r.subscriptions.Find(ctx, bson.M{
		"user_id": userID,
		"status":  string(domain.SubscriptionActive),
		"end_at":  bson.M{"$gt": now},
	})
	if err != nil {
		return nil, fmt.Errorf("find active subscription: %w", err)
	}
	var docs []subscriptionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode subscriptions: %w", err)
	}

	subs := make([]domain.Subscription, len(docs))
	for i, d := range docs {
		subs[i] = d.toDomain()
	}
	return domain.SelectActive(subs, now)
}

func (r *RBACRepository) GetRole(ctx context.Context, roleID string) (*domain.Role, error) {
	return r.findRole(ctx, bson.M{"_id": roleID})
}

func (r *RBACRepository) FindRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	return r.findRole(ctx, bson.M{"name_key": nameKey(name)})
}

func (r *RBACRepository) findRole(ctx context.Context, filter bson.M) (*domain.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var d roleDoc
	if err := r.roles.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRoleNotFound
		}
		return nil, fmt.Errorf("find role: %w", err)
	}
	role := d.toDomain()
	return &role, nil
}

func (r *RBACRepository) ListRoles(ctx context.Context) ([]domain.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.roles.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	var docs []roleDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}
	roles := make([]domain.Role, len(docs))
	for i, d := range docs {
		roles[i] = d.toDomain()
	}
	return roles, nil
}

func (r *RBACRepository) GetPermission(ctx context.Context, permissionID string) (*domain.Permission, error) {
	return r.findPermission(ctx, bson.M{"_id": permissionID})
}

func (r *RBACRepository) FindPermission(ctx context.Context, key domain.PermissionKey) (*domain.Permission, error) {
	return r.findPermission(ctx, bson.M{"action": string(key.Action), "resource": string(key.Resource)})
}

func (r *RBACRepository) findPermission(ctx context.Context, filter bson.M) (*domain.Permission, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var d permissionDoc
	if err := r.permissions.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrPermissionNotFound
		}
		return nil, fmt.Errorf("find permission: %w", err)
	}
	p := d.toDomain()
	return &p, nil
}

func (r *RBACRepository) ListPermissions(ctx context.Context) ([]domain.Permission, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.permissions.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "action", Value: 1}, {Key: "resource", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	var docs []permissionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode permissions: %w", err)
	}
	perms := make([]domain.Permission, len(docs))
	for i, d := range docs {
		perms[i] = d.toDomain()
	}
	return perms, nil
}

func (r *RBACRepository) GetSubscription(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var d subscriptionDoc
	if err := r.subscriptions.FindOne(ctx, bson.M{"_id": subscriptionID}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	sub := d.toDomain()
	return &sub, nil
}

func (r *RBACRepository) ListSubscriptions(ctx context.Context, userID string) ([]domain.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.subscriptions.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "start_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	var docs []subscriptionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode subscriptions: %w", err)
	}
	subs := make([]domain.Subscription, len(docs))
	for i, d := range docs {
		subs[i] = d.toDomain()
	}
	return subs, nil
}

// ── Mutations ────────────────────────────────────────────────────────────────

func (r *RBACRepository) CreateRole(ctx context.Context, role domain.Role) (*domain.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := r.now()
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	if role.CreatedAt.IsZero() {
		role.CreatedAt = now
	}
	role.UpdatedAt = now

	_, err := r.roles.InsertOne(ctx, roleDoc{
		ID:          role.ID,
		Name:        role.Name,
		NameKey:     nameKey(role.Name),
		SystemRole:  role.SystemRole.String(),
		Description: role.Description,
		Active:      role.Active,
		CreatedAt:   role.CreatedAt,
		UpdatedAt:   role.UpdatedAt,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRoleExists, role.Name)
		}
		return nil, fmt.Errorf("insert role: %w", err)
	}
	return &role, nil
}

func (r *RBACRepository) SetRoleActive(ctx context.Context, roleID string, active bool) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.roles.UpdateByID(ctx, roleID, bson.M{"$set": bson.M{"active": active, "updated_at": r.now()}})
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrRoleNotFound
	}
	return nil
}

func (r *RBACRepository) CreatePermission(ctx context.Context, perm domain.Permission) (*domain.Permission, error) {
	if !perm.Key().Valid() {
		return nil, fmt.Errorf("%w: permission %s", domain.ErrValidation, perm.Key())
	}
	if _, err := r.SeedPermissions(ctx, []domain.PermissionKey{perm.Key()}); err != nil {
		return nil, err
	}
	return r.FindPermission(ctx, perm.Key())
}

func (r *RBACRepository) SeedPermissions(ctx context.Context, keys []domain.PermissionKey) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := r.now()
	models := make([]mongo.WriteModel, 0, len(keys))
	for _, k := range keys {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"action": string(k.Action), "resource": string(k.Resource)}).
			SetUpdate(bson.M{"$setOnInsert": bson.M{"_id": uuid.NewString(), "created_at": now}}).
			SetUpsert(true))
	}

	res, err := r.permissions.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return 0, fmt.Errorf("seed permissions: %w", err)
	}
	if res == nil {
		return 0, nil
	}
	return int(res.UpsertedCount), nil
}

func (r *RBACRepository) GrantPermissionToRole(ctx context.Context, roleID, permissionID string) error {
	if err := r.mustExist(ctx, r.roles, roleID, domain.ErrRoleNotFound); err != nil {
		return err
	}
	if err := r.mustExist(ctx, r.permissions, permissionID, domain.ErrPermissionNotFound); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.grants.UpdateOne(ctx,
		bson.M{"role_id": roleID, "permission_id": permissionID},
		bson.M{"$setOnInsert": bson.M{"granted_at": r.now()}},
		options.Update().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("grant permission: %w", err)
	}
	return nil
}

func (r *RBACRepository) RevokePermissionFromRole(ctx context.Context, roleID, permissionID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.grants.DeleteOne(ctx, bson.M{"role_id": roleID, "permission_id": permissionID}); err != nil {
		return fmt.Errorf("revoke permission: %w", err)
	}
	return nil
}

func (r *RBACRepository) AssignRoleToUser(ctx context.Context, a domain.UserRole) error {
	if err := r.mustExist(ctx, r.roles, a.RoleID, domain.ErrRoleNotFound); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if a.AssignedAt.IsZero() {
		a.AssignedAt = r.now()
	}
	set := bson.M{"assigned_by": a.AssignedBy, "assigned_at": a.AssignedAt, "expires_at": a.ExpiresAt}
	_, err := r.assignments.UpdateOne(ctx,
		bson.M{"user_id": a.UserID, "role_id": a.RoleID},
		bson.M{"$set": set},
		options.Update().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

func (r *RBACRepository) RevokeRoleFromUser(ctx context.Context, userID, roleID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.assignments.DeleteOne(ctx, bson.M{"user_id": userID, "role_id": roleID}); err != nil {
		return fmt.Errorf("revoke role: %w", err)
	}
	return nil
}

func (r *RBACRepository) CreateSubscription(ctx context.Context, sub domain.Subscription) (*domain.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := r.now()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now

	_, err := r.subscriptions.InsertOne(ctx, subscriptionDoc{
		ID:        sub.ID,
		UserID:    sub.UserID,
		Type:      string(sub.Type),
		Status:    string(sub.Status),
		StartAt:   sub.StartAt,
		EndAt:     sub.EndAt,
		Amount:    sub.Amount,
		CreatedAt: sub.CreatedAt,
		UpdatedAt: sub.UpdatedAt,
	})
	if err != nil {
		return nil, subscriptionWriteError("insert subscription", err)
	}
	return &sub, nil
}

func (r *RBACRepository) UpdateSubscriptionStatus(ctx context.Context, subscriptionID string, status domain.SubscriptionStatus) (*domain.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var d subscriptionDoc
	err := r.subscriptions.FindOneAndUpdate(ctx,
		bson.M{"_id": subscriptionID},
		bson.M{"$set": bson.M{"status": string(status), "updated_at": r.now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, subscriptionWriteError("update subscription", err)
	}
	sub := d.toDomain()
	return &sub, nil
}

func (r *RBACRepository) mustExist(ctx context.Context, col *mongo.Collection, id string, notFound error) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := col.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("lookup %s: %w", col.Name(), err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func subscriptionWriteError(op string, err error) error {
	if mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), oneActiveIndex) {
		return domain.ErrActiveSubscriptionExists
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func toStrings(values []interface{}) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
