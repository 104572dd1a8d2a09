package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/data/repos"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/data/repos/testutil"
	types "github.com/JamesQQQ1/propvisions-web-sub001/internal/domain"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/domain/uploads"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/dbctx"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type uploadFixture struct {
	db       *gorm.DB
	svc      *uploadTokenService
	blobs    *memBlobStore
	notifier *chanNotifier
	dbc      dbctx.Context
}

func newUploadFixture(t *testing.T) *uploadFixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	blobs := newMemBlobStore()
	notifier := &chanNotifier{events: make(chan uploads.UploadedEvent, 8)}
	svc := NewUploadTokenService(log, repos.NewMissingRoomRequestRepo(db, log), blobs, notifier, UploadTokenConfig{
		TokenTTL:      time.Hour,
		NotifyTimeout: time.Second,
	}).(*uploadTokenService)
	return &uploadFixture{db: db, svc: svc, blobs: blobs, notifier: notifier, dbc: dbctx.Of(context.Background())}
}

func jpeg(name string) UploadFile {
	return UploadFile{Filename: name, ContentType: "image/jpeg", Size: 3, Body: strings.NewReader("abc")}
}

func TestValidateAroundExpiry(t *testing.T) {
	fx := newUploadFixture(t)
	ctx := context.Background()
	exp := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	req := testutil.SeedMissingRoomRequest(t, ctx, fx.db, "prop-1", "kitchen", testutil.Ptr("tok-1"), &exp, uploads.StatusUploaded)

	fx.svc.now = func() time.Time { return exp.Add(-time.Second) }
	if _, err := fx.svc.Validate(fx.dbc, "tok-1"); err != nil {
		t.Fatalf("validate before expiry: %v", err)
	}

	fx.svc.now = func() time.Time { return exp.Add(time.Second) }
	if _, err := fx.svc.Validate(fx.dbc, "tok-1"); !errors.Is(err, ErrTokenExpiredOrClosed) {
		t.Fatalf("validate after expiry: %v", err)
	}

	fx.svc.now = func() time.Time { return exp }
	if _, err := fx.svc.Validate(fx.dbc, "tok-1"); !errors.Is(err, ErrTokenExpiredOrClosed) {
		t.Fatalf("validate at expiry instant: %v", err)
	}

	fx.svc.now = func() time.Time { return exp.Add(-time.Hour) }
	if err := fx.db.Model(req).Update("status", string(uploads.StatusClosed)).Error; err != nil {
		t.Fatalf("force close: %v", err)
	}
	if _, err := fx.svc.Validate(fx.dbc, "tok-1"); !errors.Is(err, ErrTokenExpiredOrClosed) {
		t.Fatalf("validate closed: %v", err)
	}

	if _, err := fx.svc.Validate(fx.dbc, "nope"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("unknown token: %v", err)
	}
}

func TestAcceptStoresFilesAndNotifies(t *testing.T) {
	fx := newUploadFixture(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	fx.svc.now = func() time.Time { return now }
	testutil.SeedMissingRoomRequest(t, ctx, fx.db, "prop-9", "living room", testutil.Ptr("tok-9"), testutil.Ptr(now.Add(time.Hour)), uploads.StatusEmailed)

	res, err := fx.svc.Accept(fx.dbc, "tok-9", []UploadFile{jpeg("a.JPG"), jpeg("b")})
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if res.UploadedCount != 2 || len(res.URLs) != 2 {
		t.Fatalf("result: %+v", res)
	}
	wantPrefix := "https://cdn.test/missing-rooms/prop-9/living_room/"
	if !strings.HasPrefix(res.URLs[0], wantPrefix) || !strings.HasSuffix(res.URLs[0], "-0.jpg") {
		t.Fatalf("url layout: %s", res.URLs[0])
	}
	if fx.blobs.count() != 2 {
		t.Fatalf("blobs stored: %d", fx.blobs.count())
	}

	select {
	case ev := <-fx.notifier.events:
		if ev.PropertyID != "prop-9" || ev.RoomKey != "living room" || len(ev.Images) != 2 || ev.Kind != uploads.KindRoom {
			t.Fatalf("notification payload: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("notification not dispatched")
	}

	req, err := fx.svc.Validate(fx.dbc, "tok-9")
	if err != nil {
		t.Fatalf("uploaded token should still validate: %v", err)
	}
	if req.Status != uploads.StatusUploaded {
		t.Fatalf("status: %s", req.Status)
	}
}

func TestAcceptRejectsBadFileCounts(t *testing.T) {
	fx := newUploadFixture(t)
	for _, n := range []int{0, 6} {
		files := make([]UploadFile, n)
		for i := range files {
			files[i] = jpeg("x.jpg")
		}
		_, err := fx.svc.Accept(fx.dbc, "any", files)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%d files: expected ValidationError, got %v", n, err)
		}
	}
	_, err := fx.svc.Accept(fx.dbc, "any", []UploadFile{{Filename: "x.exe", ContentType: "application/x-msdownload", Body: strings.NewReader("MZ")}})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("unsupported type: %v", err)
	}
}

func TestAcceptNotificationFailureIsSwallowed(t *testing.T) {
	fx := newUploadFixture(t)
	fx.notifier.err = errors.New("webhook down")
	now := time.Now().UTC()
	testutil.SeedMissingRoomRequest(t, context.Background(), fx.db, "prop-5", "roof", testutil.Ptr("tok-5"), testutil.Ptr(now.Add(time.Hour)), uploads.StatusPending)

	if _, err := fx.svc.Accept(fx.dbc, "tok-5", []UploadFile{jpeg("r.png")}); err != nil {
		t.Fatalf("notification failure leaked into Accept: %v", err)
	}
	<-fx.notifier.events
}

func TestAcceptStorageFailureLeavesStatus(t *testing.T) {
	fx := newUploadFixture(t)
	fx.blobs.failOn = "image/png"
	now := time.Now().UTC()
	testutil.SeedMissingRoomRequest(t, context.Background(), fx.db, "prop-6", "hall", testutil.Ptr("tok-6"), testutil.Ptr(now.Add(time.Hour)), uploads.StatusEmailed)

	_, err := fx.svc.Accept(fx.dbc, "tok-6", []UploadFile{jpeg("ok.jpg"), {Filename: "b.png", ContentType: "image/png", Body: strings.NewReader("x")}})
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if fx.blobs.count() != 0 {
		t.Fatalf("partial uploads should be cleaned up, %d left", fx.blobs.count())
	}
	req, _ := fx.svc.Validate(fx.dbc, "tok-6")
	if req == nil || req.Status != uploads.StatusEmailed {
		t.Fatalf("status changed after failed upload: %+v", req)
	}
}

func TestAcceptUnreadableStoredImagesKeepsRow(t *testing.T) {
	fx := newUploadFixture(t)
	now := time.Now().UTC()
	req := testutil.SeedMissingRoomRequest(t, context.Background(), fx.db, "prop-8", "loft", testutil.Ptr("tok-8"), testutil.Ptr(now.Add(time.Hour)), uploads.StatusEmailed)
	if err := fx.db.Model(req).Update("images", datatypes.JSON(`{"not":"a list"}`)).Error; err != nil {
		t.Fatalf("seed images: %v", err)
	}

	_, err := fx.svc.Accept(fx.dbc, "tok-8", []UploadFile{jpeg("a.jpg")})
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if fx.blobs.count() != 0 {
		t.Fatalf("blobs should be cleaned up, %d left", fx.blobs.count())
	}
	got, err := fx.svc.Validate(fx.dbc, "tok-8")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	var stored map[string]string
	if got.Status != uploads.StatusEmailed || json.Unmarshal(got.Images, &stored) != nil || stored["not"] != "a list" {
		t.Fatalf("row changed: status=%s images=%s", got.Status, got.Images)
	}
}

func TestMergeImages(t *testing.T) {
	got, err := mergeImages(datatypes.JSON(`["a"]`), []string{"b"})
	if err != nil || string(got) != `["a","b"]` {
		t.Fatalf("merge = %s, %v", got, err)
	}
	if got, err := mergeImages(nil, []string{"c"}); err != nil || string(got) != `["c"]` {
		t.Fatalf("merge empty = %s, %v", got, err)
	}
	if _, err := mergeImages(datatypes.JSON(`not json`), []string{"d"}); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestConcurrentAcceptSingleWinner(t *testing.T) {
	fx := newUploadFixture(t)
	now := time.Now().UTC()
	testutil.SeedMissingRoomRequest(t, context.Background(), fx.db, "prop-7", "bed", testutil.Ptr("tok-7"), testutil.Ptr(now.Add(time.Hour)), uploads.StatusEmailed)

	// Both callers must pass validation before either writes.
	var ready sync.WaitGroup
	ready.Add(2)
	gate := make(chan struct{})
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		rejected int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ready.Done()
			<-gate
			_, err := fx.svc.Accept(fx.dbc, "tok-7", []UploadFile{jpeg("a.jpg")})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrTokenExpiredOrClosed):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	ready.Wait()
	close(gate)
	wg.Wait()

	// Either both raced on the same revision (one loser) or they ran one
	// after another (two sequential accepts). A double accept of the same
	// revision is the only forbidden outcome.
	var revision int
	if err := fx.db.Raw("SELECT revision FROM missing_room_request WHERE token = ?", "tok-7").Scan(&revision).Error; err != nil {
		t.Fatalf("read revision: %v", err)
	}
	if revision != wins {
		t.Fatalf("revision %d does not match %d successful accepts", revision, wins)
	}
	if wins+rejected != 2 || wins == 0 {
		t.Fatalf("wins=%d rejected=%d", wins, rejected)
	}
}

func TestAcceptStaleRevisionIsRejected(t *testing.T) {
	fx := newUploadFixture(t)
	now := time.Now().UTC()
	req := testutil.SeedMissingRoomRequest(t, context.Background(), fx.db, "prop-8", "study", testutil.Ptr("tok-8"), testutil.Ptr(now.Add(time.Hour)), uploads.StatusEmailed)

	// Simulate a concurrent writer landing between validate and write.
	repo := fx.svc.repo
	fx.svc.repo = &bumpingRepo{MissingRoomRequestRepo: repo, db: fx.db, id: req.ID.String()}

	_, err := fx.svc.Accept(fx.dbc, "tok-8", []UploadFile{jpeg("a.jpg")})
	if !errors.Is(err, ErrTokenExpiredOrClosed) {
		t.Fatalf("expected the loser to be rejected, got %v", err)
	}
	if fx.blobs.count() != 0 {
		t.Fatalf("loser blobs must be cleaned up")
	}
}

type bumpingRepo struct {
	repos.MissingRoomRequestRepo
	db   *gorm.DB
	id   string
	once sync.Once
}

func (b *bumpingRepo) GetByToken(dbc dbctx.Context, token string) (*types.MissingRoomRequest, error) {
	req, err := b.MissingRoomRequestRepo.GetByToken(dbc, token)
	b.once.Do(func() {
		b.db.Exec("UPDATE missing_room_request SET revision = revision + 1, status = ? WHERE id = ?", string(uploads.StatusUploaded), b.id)
	})
	return req, err
}

func TestIssueAndTransitions(t *testing.T) {
	fx := newUploadFixture(t)
	req, issued, err := fx.svc.OpenRequest(fx.dbc, OpenRequestInput{PropertyID: "prop-x", RoomKey: "garden", Kind: "ROOF"})
	if err != nil {
		t.Fatalf("OpenRequest: %v", err)
	}
	if issued.Token == "" || len(issued.Token) < 40 || req.Kind != uploads.KindRoof || req.RoomLabel != "garden" {
		t.Fatalf("opened: %+v %+v", req, issued)
	}
	if _, err := fx.svc.Validate(fx.dbc, issued.Token); err != nil {
		t.Fatalf("fresh token invalid: %v", err)
	}

	got, err := fx.svc.MarkEmailed(fx.dbc, req.ID)
	if err != nil || got.Status != uploads.StatusEmailed {
		t.Fatalf("MarkEmailed: %+v %v", got, err)
	}
	if _, err := fx.svc.Advance(fx.dbc, req.ID, uploads.StatusClosed); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := fx.svc.MarkEmailed(fx.dbc, req.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("backward transition: %v", err)
	}
	if _, err := fx.svc.Validate(fx.dbc, issued.Token); !errors.Is(err, ErrTokenExpiredOrClosed) {
		t.Fatalf("closed token: %v", err)
	}
	if _, err := fx.svc.Issue(fx.dbc, req.ID, 0, false); !errors.Is(err, ErrTokenExpiredOrClosed) {
		t.Fatalf("issue on closed without reopen: %v", err)
	}
	reissued, err := fx.svc.Issue(fx.dbc, req.ID, time.Minute, true)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reissued.Token == issued.Token {
		t.Fatalf("token must rotate")
	}
	if r, err := fx.svc.Validate(fx.dbc, reissued.Token); err != nil || r.Status != uploads.StatusPending {
		t.Fatalf("reopened request: %+v %v", r, err)
	}
	if _, err := fx.svc.Validate(fx.dbc, issued.Token); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("old token after rotation: %v", err)
	}
}

func TestUploadObjectKey(t *testing.T) {
	at := time.Unix(0, 1700000000123456789)
	got := UploadObjectKey("prop/1", "../etc", at, 3, "photo.HEIC", "image/heic")
	want := "missing-rooms/prop_1/___etc/1700000000123456789-3.heic"
	if got != want {
		t.Fatalf("key: want=%s got=%s", want, got)
	}
	if ext := fileExt("noext", "image/png"); ext != "png" {
		t.Fatalf("ext from content type: %s", ext)
	}
	if ext := fileExt("", "application/x-unknown"); ext != "bin" {
		t.Fatalf("fallback ext: %s", ext)
	}
}
