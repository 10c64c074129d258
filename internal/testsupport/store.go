package testsupport

import (
	"context"
	"testing"

	"drugscreen/internal/config"
	"drugscreen/internal/screening"
	"drugscreen/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedPreset stores a referral preset with the given contacts.
func SeedPreset(t testing.TB, st *store.Store, referral store.ReferralType, contacts ...store.Contact) *store.ReferralPreset {
	t.Helper()

	preset := &store.ReferralPreset{Name: string(referral) + " preset", Type: referral, Contacts: contacts}
	if err := st.UpsertPreset(context.Background(), preset); err != nil {
		t.Fatalf("store.UpsertPreset: %v", err)
	}
	return preset
}

// SeedClient stores a client. PresetID may be empty.
func SeedClient(t testing.TB, st *store.Store, email string, referral store.ReferralType, presetID string, extra ...store.Contact) *store.Client {
	t.Helper()

	client := &store.Client{
		FirstName:            "Jordan",
		LastName:             "Avery",
		Email:                email,
		DOB:                  "1988-04-12",
		ReferralType:         referral,
		PresetID:             presetID,
		AdditionalRecipients: extra,
	}
	if err := st.UpsertClient(context.Background(), client); err != nil {
		t.Fatalf("store.UpsertClient: %v", err)
	}
	return client
}

// SeedPanel stores a panel definition.
func SeedPanel(t testing.TB, st *store.Store, id string, kind screening.PanelKind, substances ...string) *screening.Panel {
	t.Helper()

	panel := &screening.Panel{ID: id, Name: id, Kind: kind, Substances: substances}
	if err := st.UpsertPanel(context.Background(), panel); err != nil {
		t.Fatalf("store.UpsertPanel: %v", err)
	}
	return panel
}

// SaveTest persists a test record with re-entry suppressed so fixtures do not
// leave outbox rows behind.
func SaveTest(t testing.TB, st *store.Store, test *store.Test) *store.Test {
	t.Helper()

	if err := st.SaveTest(context.Background(), test, store.SaveOptions{SuppressReentry: true}); err != nil {
		t.Fatalf("store.SaveTest: %v", err)
	}
	return test
}
