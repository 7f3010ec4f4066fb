package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/petabite/shiptivitas-2/domain"
)

func openTestStore(t *testing.T, clients ...domain.Client) *Store {
	t.Helper()
	s, err := Open(context.Background(), DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if len(clients) > 0 {
		if err := s.Seed(context.Background(), clients); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return s
}

func boardClients() []domain.Client {
	return []domain.Client{
		{ID: 1, Name: "Stark, White and Abbott", Description: "Cloned Optimal Architecture", Status: domain.StatusBacklog, Priority: 1},
		{ID: 2, Name: "Wiza LLC", Description: "Exclusive Bandwidth-Monitored Implementation", Status: domain.StatusBacklog, Priority: 2},
		{ID: 3, Name: "Nolan LLC", Description: "Vision-Oriented 4Thgeneration Graphicaluserinterface", Status: domain.StatusInProgress, Priority: 1},
		{ID: 4, Name: "Thompson PLC", Description: "Streamlined Regional Knowledgeuser", Status: domain.StatusComplete, Priority: 1},
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "dsn"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestListAndGetClients(t *testing.T) {
	s := openTestStore(t, boardClients()...)
	ctx := context.Background()

	all, err := s.ListClients(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff(boardClients(), all); diff != "" {
		t.Fatalf("unexpected clients (-want +got):\n%s", diff)
	}

	backlog, err := s.ListClients(ctx, domain.StatusBacklog)
	if err != nil {
		t.Fatalf("list backlog: %v", err)
	}
	if len(backlog) != 2 || backlog[0].ID != 1 || backlog[1].ID != 2 {
		t.Fatalf("unexpected backlog: %#v", backlog)
	}

	c, err := s.GetClient(ctx, 3)
	if err != nil || c == nil || c.Name != "Nolan LLC" {
		t.Fatalf("GetClient(3) = %#v, %v", c, err)
	}
	missing, err := s.GetClient(ctx, 99)
	if err != nil || missing != nil {
		t.Fatalf("GetClient(99) = %#v, %v", missing, err)
	}
}

func TestListClientsEmptyTable(t *testing.T) {
	s := openTestStore(t)
	clients, err := s.ListClients(context.Background(), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if clients == nil || len(clients) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", clients)
	}
}

func TestTransactionQueries(t *testing.T) {
	s := openTestStore(t, boardClients()...)
	ctx := context.Background()

	err := s.RunInTransaction(ctx, func(tx domain.Tx) error {
		from, err := tx.ClientsFrom(ctx, domain.StatusBacklog, 2)
		if err != nil {
			return err
		}
		if len(from) != 1 || from[0].ID != 2 {
			t.Fatalf("unexpected ClientsFrom: %#v", from)
		}
		last, err := tx.MaxPriority(ctx, domain.StatusBacklog)
		if err != nil || last != 2 {
			t.Fatalf("MaxPriority(backlog) = %d, %v", last, err)
		}
		if err := tx.SetStatusAndPriority(ctx, 3, domain.StatusComplete, 2); err != nil {
			return err
		}
		empty, err := tx.MaxPriority(ctx, domain.StatusInProgress)
		if err != nil || empty != 0 {
			t.Fatalf("MaxPriority(in-progress) = %d, %v", empty, err)
		}
		taken, err := tx.PriorityTaken(ctx, domain.StatusComplete, 2)
		if err != nil || !taken {
			t.Fatalf("PriorityTaken(complete, 2) = %v, %v", taken, err)
		}
		return tx.SetPriority(ctx, 1, 3)
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}

	c, _ := s.GetClient(ctx, 3)
	if c.Status != domain.StatusComplete || c.Priority != 2 {
		t.Fatalf("unexpected client 3: %#v", c)
	}
	c, _ = s.GetClient(ctx, 1)
	if c.Priority != 3 {
		t.Fatalf("unexpected client 1: %#v", c)
	}
}

func TestRunInTransactionRollsBack(t *testing.T) {
	s := openTestStore(t, boardClients()...)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTransaction(ctx, func(tx domain.Tx) error {
		if err := tx.SetPriority(ctx, 1, 5); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	c, _ := s.GetClient(ctx, 1)
	if c.Priority != 1 {
		t.Fatalf("expected rollback, client 1 has priority %d", c.Priority)
	}
}

func TestUniqueRankPerSwimlane(t *testing.T) {
	s := openTestStore(t, boardClients()...)
	ctx := context.Background()

	err := s.RunInTransaction(ctx, func(tx domain.Tx) error {
		return tx.SetPriority(ctx, 2, 1)
	})
	if err == nil {
		t.Fatal("expected unique violation")
	}
}

func TestServiceOverSQLite(t *testing.T) {
	s := openTestStore(t,
		domain.Client{ID: 1, Name: "a", Status: domain.StatusBacklog, Priority: 1},
		domain.Client{ID: 2, Name: "b", Status: domain.StatusBacklog, Priority: 2},
		domain.Client{ID: 5, Name: "c", Status: domain.StatusInProgress, Priority: 1},
	)
	svc := domain.NewService(s, domain.GapLeave)
	ctx := context.Background()

	res, err := svc.Update(ctx, "2", domain.Update{Status: domain.StatusBacklog, Priority: 1})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	want := []domain.Client{
		{ID: 1, Name: "a", Status: domain.StatusBacklog, Priority: 2},
		{ID: 2, Name: "b", Status: domain.StatusBacklog, Priority: 1},
		{ID: 5, Name: "c", Status: domain.StatusInProgress, Priority: 1},
	}
	if diff := cmp.Diff(want, res.Clients); diff != "" {
		t.Fatalf("unexpected clients (-want +got):\n%s", diff)
	}

	res, err = svc.Update(ctx, "5", domain.Update{Status: domain.StatusComplete})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.Mode != domain.ModeAppend {
		t.Fatalf("unexpected mode %s", res.Mode)
	}
	c, _ := s.GetClient(ctx, 5)
	if c.Status != domain.StatusComplete || c.Priority != 1 {
		t.Fatalf("unexpected client 5: %#v", c)
	}
}

func TestServiceGapCloseOverSQLite(t *testing.T) {
	s := openTestStore(t,
		domain.Client{ID: 1, Status: domain.StatusBacklog, Priority: 1},
		domain.Client{ID: 2, Status: domain.StatusBacklog, Priority: 2},
		domain.Client{ID: 3, Status: domain.StatusBacklog, Priority: 3},
	)
	svc := domain.NewService(s, domain.GapClose)
	ctx := context.Background()

	if _, err := svc.Update(ctx, "1", domain.Update{Status: domain.StatusBacklog, Priority: 3}); err != nil {
		t.Fatalf("move within swimlane: %v", err)
	}
	if _, err := svc.Update(ctx, "2", domain.Update{Status: domain.StatusComplete, Priority: 4}); err != nil {
		t.Fatalf("move across swimlanes: %v", err)
	}
	got, err := s.ListClients(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []domain.Client{
		{ID: 1, Status: domain.StatusBacklog, Priority: 2},
		{ID: 2, Status: domain.StatusComplete, Priority: 1},
		{ID: 3, Status: domain.StatusBacklog, Priority: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected clients (-want +got):\n%s", diff)
	}

	res, err := svc.Update(ctx, "3", domain.Update{Priority: 5})
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if res.Mode != domain.ModeRerank {
		t.Fatalf("unexpected mode %s", res.Mode)
	}
	want = []domain.Client{
		{ID: 1, Status: domain.StatusBacklog, Priority: 1},
		{ID: 2, Status: domain.StatusComplete, Priority: 1},
		{ID: 3, Status: domain.StatusBacklog, Priority: 2},
	}
	if diff := cmp.Diff(want, res.Clients); diff != "" {
		t.Fatalf("unexpected clients after rerank (-want +got):\n%s", diff)
	}
}

func TestRebind(t *testing.T) {
	pg := &conn{driver: DriverPostgres}
	if got := pg.rebind("UPDATE clients SET status = ?, priority = ? WHERE id = ?"); got != "UPDATE clients SET status = $1, priority = $2 WHERE id = $3" {
		t.Fatalf("unexpected postgres query: %s", got)
	}
	lite := &conn{driver: DriverSQLite}
	if got := lite.rebind("SELECT ? "); got != "SELECT ? " {
		t.Fatalf("sqlite query should be unchanged, got %s", got)
	}
}
