package services

import (
	"context"
	"errors"
	"testing"

	"moneymanager/internal/core"
	"moneymanager/internal/form"
	"moneymanager/internal/storage"
)

type fakeStore struct {
	ops []string
	err error
}

func (f *fakeStore) Record(_ context.Context, op string, _ core.Transaction) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.ops = append(f.ops, op)
	return int64(len(f.ops)), nil
}

type fakePublisher struct {
	ids []int64
	err error
}

func (f *fakePublisher) PublishJournalSync(_ context.Context, id int64, _ string) error {
	f.ids = append(f.ids, id)
	return f.err
}

func TestJournalRecordPublishes(t *testing.T) {
	store, pub := &fakeStore{}, &fakePublisher{}
	j := NewJournal(store, pub, nil)

	id, err := j.Record(context.Background(), storage.OpCreate, core.Transaction{ID: "tx-1"})
	if err != nil {
		t.Fatal(err)
	}
	if id != 1 || len(pub.ids) != 1 || pub.ids[0] != 1 {
		t.Fatalf("id=%d published=%v", id, pub.ids)
	}
}

func TestJournalPublishFailureIsNotFatal(t *testing.T) {
	j := NewJournal(&fakeStore{}, &fakePublisher{err: errors.New("broker down")}, nil)
	if _, err := j.Record(context.Background(), storage.OpCreate, core.Transaction{}); err != nil {
		t.Fatalf("publish failure should not fail the record: %v", err)
	}
}

func TestJournalWithoutPublisher(t *testing.T) {
	store := &fakeStore{}
	j := NewJournal(store, nil, nil)
	if _, err := j.Record(context.Background(), storage.OpCreate, core.Transaction{}); err != nil {
		t.Fatal(err)
	}
	if len(store.ops) != 1 {
		t.Fatalf("entry not stored")
	}
}

func TestJournalStoreFailure(t *testing.T) {
	j := NewJournal(&fakeStore{err: errors.New("disk full")}, &fakePublisher{}, nil)
	if _, err := j.Record(context.Background(), storage.OpCreate, core.Transaction{}); err == nil {
		t.Fatal("expected store error")
	}
}

func TestJournalHookMapsMode(t *testing.T) {
	store := &fakeStore{}
	hook := NewJournal(store, nil, nil).OnSaved()
	hook(context.Background(), core.Transaction{ID: "a"}, form.ModeCreate)
	hook(context.Background(), core.Transaction{ID: "a"}, form.ModeEdit)
	if len(store.ops) != 2 || store.ops[0] != storage.OpCreate || store.ops[1] != storage.OpUpdate {
		t.Fatalf("ops = %v", store.ops)
	}
}
