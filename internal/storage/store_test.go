package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/clinvault/clinvault/internal/domain/document"
	"github.com/clinvault/clinvault/internal/domain/profile"
	"github.com/clinvault/clinvault/internal/domain/report"
	"github.com/clinvault/clinvault/pkg/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrapping sql.DB: %v", err)
	}
	// A second connection would see its own empty in-memory database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db, zap.NewNop()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return New(db, nil)
}

func seedProfile(t *testing.T, s *Store) *profile.Profile {
	t.Helper()
	p := &profile.Profile{
		ID:          uuid.New(),
		Name:        "Asha Patel",
		DateOfBirth: time.Date(1980, 3, 14, 0, 0, 0, 0, time.UTC),
		Gender:      profile.GenderFemale,
	}
	if err := s.Profiles.Put(context.Background(), p); err != nil {
		t.Fatalf("seeding profile: %v", err)
	}
	return p
}

func seedDocument(t *testing.T, s *Store, profileID uuid.UUID, summary string) *document.ProcessedDocument {
	t.Helper()
	d := &document.ProcessedDocument{
		ProfileID:  profileID,
		ID:         uuid.New(),
		Type:       document.TypeLab,
		Summary:    summary,
		SourceName: "lab.pdf",
		SourceMime: "application/pdf",
		SourceData: []byte("%PDF-1.4"),
	}
	if err := s.Documents.Put(context.Background(), d); err != nil {
		t.Fatalf("seeding document: %v", err)
	}
	return d
}

func seedReport(t *testing.T, s *Store, profileID uuid.UUID) *report.ReportData {
	t.Helper()
	r := &report.ReportData{
		ProfileID: profileID,
		History:   "history",
		Summary:   "summary",
		Prognosis: "prognosis",
	}
	if err := s.Reports.Put(context.Background(), r); err != nil {
		t.Fatalf("seeding report: %v", err)
	}
	return r
}

func TestProfileRoundTrip(t *testing.T) {
	s := newTestStore(t)
	want := seedProfile(t, s)

	got, err := s.Profiles.GetByID(context.Background(), want.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ID != want.ID || got.Name != want.Name || got.Gender != want.Gender {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
	if !got.DateOfBirth.Equal(want.DateOfBirth) {
		t.Errorf("date of birth = %v, want %v", got.DateOfBirth, want.DateOfBirth)
	}
}

func TestProfilePutIsFullReplacement(t *testing.T) {
	s := newTestStore(t)
	p := seedProfile(t, s)

	replacement := &profile.Profile{
		ID:          p.ID,
		Name:        "A. Patel-Singh",
		DateOfBirth: p.DateOfBirth,
		Gender:      profile.GenderOther,
	}
	if err := s.Profiles.Put(context.Background(), replacement); err != nil {
		t.Fatalf("replacing profile: %v", err)
	}

	got, err := s.Profiles.GetByID(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "A. Patel-Singh" || got.Gender != profile.GenderOther {
		t.Errorf("replacement did not overwrite: %+v", got)
	}

	all, err := s.Profiles.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("put by existing key must not create a second row, got %d", len(all))
	}
}

func TestProfileGetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Profiles.GetByID(context.Background(), uuid.New())
	if !errors.Is(err, profile.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestDocumentCompositeKeyIsolation(t *testing.T) {
	s := newTestStore(t)
	p1 := seedProfile(t, s)
	p2 := seedProfile(t, s)
	d1 := seedDocument(t, s, p1.ID, "p1 doc")
	seedDocument(t, s, p2.ID, "p2 doc")

	// The composite key scopes lookups: p1's document is invisible under p2.
	_, err := s.Documents.Get(context.Background(), p2.ID, d1.ID)
	if !errors.Is(err, document.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound across profiles, got %v", err)
	}

	docs, err := s.Documents.ListByProfile(context.Background(), p1.ID)
	if err != nil {
		t.Fatalf("ListByProfile: %v", err)
	}
	if len(docs) != 1 || docs[0].Summary != "p1 doc" {
		t.Errorf("listing leaked across profiles: %+v", docs)
	}
}

func TestDocumentSourceBytesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	p := seedProfile(t, s)
	d := seedDocument(t, s, p.ID, "with source")

	got, err := s.Documents.Get(context.Background(), p.ID, d.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.SourceData) != "%PDF-1.4" {
		t.Errorf("source bytes = %q", got.SourceData)
	}
	if got.SourceMime != "application/pdf" || got.SourceName != "lab.pdf" {
		t.Errorf("source metadata lost: %+v", got)
	}
}

func TestDocumentDeleteIdempotent(t *testing.T) {
	s := newTestStore(t)
	p := seedProfile(t, s)
	d := seedDocument(t, s, p.ID, "doomed")

	if err := s.Documents.Delete(context.Background(), p.ID, d.ID); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := s.Documents.Delete(context.Background(), p.ID, d.ID); err != nil {
		t.Fatalf("repeat delete must be a no-op, got %v", err)
	}
	if _, err := s.Documents.Get(context.Background(), p.ID, d.ID); !errors.Is(err, document.ErrDocumentNotFound) {
		t.Fatalf("document still present after delete: %v", err)
	}
}

func TestPutAllPersistsBatch(t *testing.T) {
	s := newTestStore(t)
	p := seedProfile(t, s)

	batch := []*document.ProcessedDocument{
		{ProfileID: p.ID, ID: uuid.New(), Type: document.TypeLab, Summary: "one"},
		{ProfileID: p.ID, ID: uuid.New(), Type: document.TypeNote, Summary: "two"},
		{ProfileID: p.ID, ID: uuid.New(), Type: document.TypeOther, Summary: "three"},
	}
	if err := s.Documents.PutAll(context.Background(), batch); err != nil {
		t.Fatalf("PutAll: %v", err)
	}

	docs, err := s.Documents.ListByProfile(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("ListByProfile: %v", err)
	}
	if len(docs) != 3 {
		t.Errorf("got %d documents, want 3", len(docs))
	}
}

func TestReportOnePerProfile(t *testing.T) {
	s := newTestStore(t)
	p := seedProfile(t, s)
	seedReport(t, s, p.ID)

	newer := &report.ReportData{
		ProfileID: p.ID,
		History:   "revised history",
		Summary:   "revised summary",
		Prognosis: "revised prognosis",
	}
	if err := s.Reports.Put(context.Background(), newer); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	got, err := s.Reports.GetByProfile(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("GetByProfile: %v", err)
	}
	if got.History != "revised history" {
		t.Errorf("re-synthesis did not overwrite: %+v", got)
	}
}

func TestClearPatientHistoryKeepsProfile(t *testing.T) {
	s := newTestStore(t)
	p := seedProfile(t, s)
	seedDocument(t, s, p.ID, "doc")
	seedReport(t, s, p.ID)

	if err := s.ClearPatientHistory(context.Background(), p.ID); err != nil {
		t.Fatalf("ClearPatientHistory: %v", err)
	}

	if _, err := s.Profiles.GetByID(context.Background(), p.ID); err != nil {
		t.Errorf("profile must survive a history clear: %v", err)
	}
	docs, err := s.Documents.ListByProfile(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("ListByProfile: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("documents survived clear: %d", len(docs))
	}
	if _, err := s.Reports.GetByProfile(context.Background(), p.ID); !errors.Is(err, report.ErrReportNotFound) {
		t.Errorf("report survived clear: %v", err)
	}
}

func TestDeleteProfileCompletely(t *testing.T) {
	s := newTestStore(t)
	p := seedProfile(t, s)
	other := seedProfile(t, s)
	seedDocument(t, s, p.ID, "doc")
	seedReport(t, s, p.ID)
	otherDoc := seedDocument(t, s, other.ID, "other doc")

	if err := s.DeleteProfileCompletely(context.Background(), p.ID); err != nil {
		t.Fatalf("DeleteProfileCompletely: %v", err)
	}

	if _, err := s.Profiles.GetByID(context.Background(), p.ID); !errors.Is(err, profile.ErrProfileNotFound) {
		t.Errorf("profile survived cascade: %v", err)
	}
	docs, err := s.Documents.ListByProfile(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("ListByProfile: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("documents survived cascade: %d", len(docs))
	}
	if _, err := s.Reports.GetByProfile(context.Background(), p.ID); !errors.Is(err, report.ErrReportNotFound) {
		t.Errorf("report survived cascade: %v", err)
	}

	// The cascade is scoped: the other profile's data is untouched.
	if _, err := s.Documents.Get(context.Background(), other.ID, otherDoc.ID); err != nil {
		t.Errorf("cascade leaked into another profile: %v", err)
	}

	// Idempotent: deleting an absent profile is a no-op.
	if err := s.DeleteProfileCompletely(context.Background(), p.ID); err != nil {
		t.Fatalf("repeat cascade delete must be a no-op, got %v", err)
	}
}

func TestMigrateIsRerunSafe(t *testing.T) {
	s := newTestStore(t)
	// newTestStore already migrated once; a second run must apply nothing
	// and leave existing data intact.
	p := seedProfile(t, s)
	if err := database.Migrate(s.db, zap.NewNop()); err != nil {
		t.Fatalf("re-running migrations: %v", err)
	}
	if _, err := s.Profiles.GetByID(context.Background(), p.ID); err != nil {
		t.Errorf("data lost across migration re-run: %v", err)
	}
}
