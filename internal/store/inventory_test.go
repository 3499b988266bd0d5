package store

import (
	"context"
	"testing"
)

func seedObject(t *testing.T, db *DB, id string, pad PAD, domain string) {
	t.Helper()
	def := ObjectDef{ObjectID: id, Name: id, PAD: pad}
	if domain != "" {
		def.LinkedDomainID = &domain
	}
	if err := db.PutObjectDef(context.Background(), def); err != nil {
		t.Fatalf("PutObjectDef %s: %v", id, err)
	}
}

func TestPutObjectDefReplaces(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	seedObject(t, db, "locket", PAD{P: 0.5}, "family")
	seedObject(t, db, "locket", PAD{P: -0.5}, "")

	def, err := db.GetObjectDef(ctx, "locket")
	if err != nil {
		t.Fatalf("GetObjectDef: %v", err)
	}
	if def.P != -0.5 {
		t.Errorf("p = %f, want -0.5", def.P)
	}
	if def.LinkedDomainID != nil {
		t.Errorf("linked_domain_id = %q, want nil", *def.LinkedDomainID)
	}

	missing, err := db.GetObjectDef(ctx, "nothing")
	if err != nil {
		t.Fatalf("GetObjectDef missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil def, got %+v", missing)
	}
}

func TestAddInventoryItemUnknownObject(t *testing.T) {
	db := testDB(t)

	err := db.AddInventoryItem(context.Background(), &InventoryItem{CharacterID: "ada", ObjectID: "ghost"})
	if err == nil {
		t.Error("expected foreign key error for unknown object")
	}
}

func TestGetInventoryJoinsDefs(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	seedObject(t, db, "locket", PAD{P: 0.6, A: 0.1}, "family")
	seedObject(t, db, "knife", PAD{D: 0.4}, "")

	for _, item := range []*InventoryItem{
		{CharacterID: "ada", ObjectID: "locket", AcquisitionMethod: "gift", AcquiredAt: 1000},
		{CharacterID: "ada", ObjectID: "knife", AcquisitionMethod: "found", AcquiredAt: 2000},
		{CharacterID: "bram", ObjectID: "knife", AcquisitionMethod: "stolen"},
	} {
		if err := db.AddInventoryItem(ctx, item); err != nil {
			t.Fatalf("AddInventoryItem: %v", err)
		}
		if item.ID == 0 {
			t.Error("expected non-zero item ID")
		}
	}

	items, err := db.GetInventory(ctx, "ada")
	if err != nil {
		t.Fatalf("GetInventory: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].ObjectID != "locket" || items[0].P != 0.6 {
		t.Errorf("first item = %+v, want locket with p=0.6", items[0])
	}
	if items[0].LinkedDomainID == nil || *items[0].LinkedDomainID != "family" {
		t.Errorf("locket domain = %v, want family", items[0].LinkedDomainID)
	}
	if items[1].LinkedDomainID != nil {
		t.Errorf("knife domain = %v, want nil", *items[1].LinkedDomainID)
	}
}

func TestTouchAndRemoveInventoryItem(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	seedObject(t, db, "locket", PAD{P: 0.6}, "")
	item := &InventoryItem{CharacterID: "ada", ObjectID: "locket"}
	if err := db.AddInventoryItem(ctx, item); err != nil {
		t.Fatalf("AddInventoryItem: %v", err)
	}

	for i := 0; i < 3; i++ {
		ok, err := db.TouchInventoryItem(ctx, "ada", item.ID)
		if err != nil || !ok {
			t.Fatalf("TouchInventoryItem: ok=%v err=%v", ok, err)
		}
	}
	items, _ := db.GetInventory(ctx, "ada")
	if items[0].InteractionCount != 3 {
		t.Errorf("interaction_count = %d, want 3", items[0].InteractionCount)
	}

	// Another character cannot touch or remove it.
	if ok, _ := db.TouchInventoryItem(ctx, "bram", item.ID); ok {
		t.Error("bram should not be able to touch ada's item")
	}
	if ok, _ := db.RemoveInventoryItem(ctx, "bram", item.ID); ok {
		t.Error("bram should not be able to remove ada's item")
	}

	ok, err := db.RemoveInventoryItem(ctx, "ada", item.ID)
	if err != nil || !ok {
		t.Fatalf("RemoveInventoryItem: ok=%v err=%v", ok, err)
	}
	items, _ = db.GetInventory(ctx, "ada")
	if len(items) != 0 {
		t.Errorf("got %d items after remove, want 0", len(items))
	}
}

func TestInfluenceSubjects(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	seedObject(t, db, "locket", PAD{P: 0.6}, "")
	if err := db.AddInventoryItem(ctx, &InventoryItem{CharacterID: "bram", ObjectID: "locket"}); err != nil {
		t.Fatalf("AddInventoryItem: %v", err)
	}
	if err := db.AddInventoryItem(ctx, &InventoryItem{CharacterID: "bram", ObjectID: "locket"}); err != nil {
		t.Fatalf("AddInventoryItem: %v", err)
	}
	// ada owns nothing any more but still has a stale influence row.
	if err := db.UpsertInfluence(ctx, &ObjectInfluence{CharacterID: "ada", ComputedAt: 1}); err != nil {
		t.Fatalf("UpsertInfluence: %v", err)
	}

	ids, err := db.InfluenceSubjects(ctx)
	if err != nil {
		t.Fatalf("InfluenceSubjects: %v", err)
	}
	if len(ids) != 2 || ids[0] != "ada" || ids[1] != "bram" {
		t.Errorf("subjects = %v, want [ada bram]", ids)
	}
}

func TestObjectDefPADConstraint(t *testing.T) {
	db := testDB(t)

	err := db.PutObjectDef(context.Background(), ObjectDef{ObjectID: "idol", PAD: PAD{A: 1.5}})
	if err == nil {
		t.Error("expected error for arousal out of range, got nil")
	}
}
