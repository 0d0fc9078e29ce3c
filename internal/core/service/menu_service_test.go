package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/campusgate/access-core/internal/core/domain"
	"github.com/campusgate/access-core/internal/infrastructure/db/memory"
)

func sampleMenu() []domain.MenuNode {
	return []domain.MenuNode{
		{ID: "home", Title: "Home", Route: "/", SortOrder: 1},
		{ID: "admin", Title: "Administration", SortOrder: 2},
		{ID: "admin.finance", ParentID: "admin", Title: "Finance", SortOrder: 1,
			RequiredPermissions: []domain.PermissionKey{viewFinance}},
		{ID: "admin.finance.ledger", ParentID: "admin.finance", Title: "Ledger", Route: "/admin/finance/ledger"},
		{ID: "admin.reports", ParentID: "admin", Title: "Reports", Route: "/admin/reports", SortOrder: 2,
			RequiredPermissions: []domain.PermissionKey{viewReports, editContent}},
	}
}

func flatten(nodes []domain.MenuNode) []string {
	var ids []string
	for _, n := range nodes {
		ids = append(ids, n.ID)
		ids = append(ids, flatten(n.Children)...)
	}
	return ids
}

func TestMenuService_HiddenParentTakesSubtree(t *testing.T) {
	f := newFixture(t)
	f.assign("u1", f.role("Reporter", domain.SystemRoleCustom, viewReports))
	svc := NewMenuService(memory.NewMenuSource(sampleMenu()), f.authz, zerolog.Nop())

	menu, err := svc.VisibleMenu(context.Background(), "u1")
	if err != nil {
		t.Fatalf("VisibleMenu: %v", err)
	}
	got := flatten(menu)
	want := []string{"home", "admin", "admin.reports"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestMenuService_FullAccess(t *testing.T) {
	f := newFixture(t)
	f.assign("u1", f.role("Bursar", domain.SystemRoleCustom, viewFinance, editContent))
	svc := NewMenuService(memory.NewMenuSource(sampleMenu()), f.authz, zerolog.Nop())

	menu, err := svc.VisibleMenu(context.Background(), "u1")
	if err != nil {
		t.Fatalf("VisibleMenu: %v", err)
	}
	if got := flatten(menu); len(got) != 5 {
		t.Fatalf("expected every node, got %v", got)
	}
}

func TestMenuService_VisibleNodeKeptWithoutVisibleChildren(t *testing.T) {
	f := newFixture(t)
	f.assign("u1", f.role("Reader", domain.SystemRoleCustom, viewContent))
	rows := []domain.MenuNode{
		{ID: "content", Title: "Content", RequiredPermissions: []domain.PermissionKey{viewContent}},
		{ID: "content.delete", ParentID: "content", Title: "Delete", Route: "/content/delete",
			RequiredPermissions: []domain.PermissionKey{deleteContent}},
	}
	svc := NewMenuService(memory.NewMenuSource(rows), f.authz, zerolog.Nop())

	menu, err := svc.VisibleMenu(context.Background(), "u1")
	if err != nil {
		t.Fatalf("VisibleMenu: %v", err)
	}
	if len(menu) != 1 || menu[0].ID != "content" || menu[0].Children != nil {
		t.Fatalf("expected content without children, got %+v", menu)
	}
}

func TestMenuService_GuestSeesUnrestrictedNodes(t *testing.T) {
	f := newFixture(t)
	svc := NewMenuService(memory.NewMenuSource(sampleMenu()), f.authz, zerolog.Nop())

	menu, err := svc.VisibleMenu(context.Background(), "guest")
	if err != nil {
		t.Fatalf("VisibleMenu: %v", err)
	}
	got := flatten(menu)
	if len(got) != 2 || got[0] != "home" || got[1] != "admin" {
		t.Fatalf("expected home and the unrestricted admin node, got %v", got)
	}
}

func TestMenuService_FailsClosed(t *testing.T) {
	authz := NewAuthzService(failingReader{err: errStoreDown}, zerolog.Nop())
	svc := NewMenuService(memory.NewMenuSource(sampleMenu()), authz, zerolog.Nop())

	menu, err := svc.VisibleMenu(context.Background(), "u1")
	if menu != nil || !errors.Is(err, domain.ErrDecisionIndeterminate) {
		t.Fatalf("expected no menu and indeterminate error, got %v, %v", menu, err)
	}
}

func TestMenuService_InvalidTree(t *testing.T) {
	f := newFixture(t)
	src := memory.NewMenuSource([]domain.MenuNode{{ID: "orphan", ParentID: "gone"}})
	svc := NewMenuService(src, f.authz, zerolog.Nop())

	if _, err := svc.VisibleMenu(context.Background(), "u1"); !errors.Is(err, domain.ErrInvalidMenuTree) {
		t.Fatalf("expected ErrInvalidMenuTree, got %v", err)
	}
}
