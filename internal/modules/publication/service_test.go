package publication

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/komuness/core/internal/models"
	"github.com/komuness/core/internal/modules/storage/upload"
	"github.com/komuness/core/internal/pkg/pagination"
	"github.com/komuness/core/internal/pkg/response"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockNotifier struct {
	mock.Mock
	events chan string
}

func newMockNotifier() *mockNotifier {
	n := &mockNotifier{events: make(chan string, 32)}
	n.On("PublicationCreated", mock.Anything).Run(n.signal("created")).Maybe()
	n.On("EditRequested", mock.Anything, mock.Anything).Run(n.signal("requested")).Maybe()
	n.On("EditResolved", mock.Anything, mock.Anything).Run(n.signal("resolved")).Maybe()
	return n
}

func (n *mockNotifier) signal(event string) func(mock.Arguments) {
	return func(mock.Arguments) { n.events <- event }
}

func (n *mockNotifier) PublicationCreated(_ context.Context, pub *models.PublicationModel) {
	n.Called(pub.ID)
}

func (n *mockNotifier) EditRequested(_ context.Context, pub *models.PublicationModel, changed []string) {
	n.Called(pub.ID, changed)
}

func (n *mockNotifier) EditResolved(_ context.Context, pub *models.PublicationModel, entry *models.EditHistoryModel) {
	n.Called(pub.ID, entry.Status)
}

func (n *mockNotifier) wait(t *testing.T, event string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case got := <-n.events:
			if got == event {
				return
			}
		case <-timeout:
			t.Fatalf("notification %q was not sent", event)
		}
	}
}

type harness struct {
	svc      *Service
	store    *GormStore
	files    *upload.LocalStorage
	ledger   *upload.Ledger
	notifier *mockNotifier
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	store := NewGormStore(newTestDB(t))
	files, err := upload.NewLocalStorage(t.TempDir(), "http://localhost:5000", upload.Limits{MaxBytes: 1 << 20})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ledger := upload.NewLedger(rdb)

	n := newMockNotifier()
	opts = append([]Option{WithNotifier(n)}, opts...)
	return &harness{
		svc:      NewService(store, upload.NewManager(files, ledger), opts...),
		store:    store,
		files:    files,
		ledger:   ledger,
		notifier: n,
	}
}

func (h *harness) stored(t *testing.T, att models.Attachment) bool {
	t.Helper()
	path, err := h.files.Path(att.Key)
	require.NoError(t, err)
	_, err = os.Stat(path)
	return err == nil
}

func (h *harness) put(t *testing.T, name string) models.Attachment {
	t.Helper()
	att, err := h.files.Put(context.Background(), upload.FromBytes(name, "image/png", []byte("png")))
	require.NoError(t, err)
	return att
}

func strPtr(s string) *string { return &s }

func TestRequestApproveThenLimitScenario(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	pub := seedPublication(t, h.store, func(p *models.PublicationModel) { p.EditCount = 2 })

	got, changed, err := h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{Title: strPtr("Feria navideña")})
	require.NoError(t, err)
	assert.Equal(t, []string{"titulo"}, changed)
	require.True(t, got.HasPending())
	assert.Equal(t, "Feria navideña", *got.PendingUpdate.Title)
	require.NotNil(t, got.LastEditRequest)
	h.notifier.wait(t, "requested")
	h.notifier.AssertCalled(t, "EditRequested", pub.ID, []string{"titulo"})

	live, err := h.store.Get(ctx, pub.ID)
	require.NoError(t, err)
	assert.Equal(t, "Feria de emprendedores", live.Title)
	assert.True(t, live.HasPending())
	assert.NotNil(t, live.LastEditRequest)

	approved, labels, err := h.svc.Approve(ctx, pub.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"título"}, labels)
	assert.Equal(t, "Feria navideña", approved.Title)
	assert.Equal(t, 3, approved.EditCount)
	assert.False(t, approved.HasPending())
	assert.Nil(t, approved.LastEditRequest)
	require.Len(t, approved.EditHistory, 1)
	entry := approved.EditHistory[0]
	assert.Equal(t, models.EditApproved, entry.Status)
	assert.Equal(t, 1, entry.Version)
	assert.Equal(t, "author-1", entry.EditedBy)
	assert.Equal(t, "admin-1", entry.ApprovedBy)
	assert.True(t, got.LastEditRequest.Equal(entry.EditedAt))
	h.notifier.wait(t, "resolved")
	h.notifier.AssertCalled(t, "EditResolved", pub.ID, models.EditApproved)

	_, _, err = h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{Title: strPtr("Otra")})
	var limit *LimitError
	require.ErrorAs(t, err, &limit)
	assert.Equal(t, 3, limit.MaxEdits)
	assert.EqualError(t, err, "Has alcanzado el límite máximo de 3 ediciones para esta publicación")
}

func TestRequestUpdateGuards(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	pub := seedPublication(t, h.store)
	in := EditRequestInput{Title: strPtr("Nuevo")}

	_, _, err := h.svc.RequestUpdate(ctx, pub.ID, "", in)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, _, err = h.svc.RequestUpdate(ctx, "missing", "author-1", in)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = h.svc.RequestUpdate(ctx, pub.ID, "intruder", in)
	assert.ErrorIs(t, err, ErrForbidden)

	_, _, err = h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{Title: strPtr(pub.Title)})
	assert.ErrorIs(t, err, ErrNoChanges)

	_, _, err = h.svc.RequestUpdate(ctx, pub.ID, "author-1", in)
	require.NoError(t, err)
	_, _, err = h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{Body: strPtr("otro")})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRequestUpdateLimitWinsOverConflict(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	pub := seedPublication(t, h.store, func(p *models.PublicationModel) { p.EditCount = 2 })

	_, _, err := h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{Title: strPtr("x")})
	require.NoError(t, err)
	require.NoError(t, h.store.db.Model(&models.PublicationModel{}).
		Where("id = ?", pub.ID).Update("edit_count", 3).Error)

	_, _, err = h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{Title: strPtr("y")})
	assert.ErrorIs(t, err, ErrLimitExceeded)
}

func TestRequestUpdateZeroMaxEditsUsesDefault(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, WithOptions(Options{MaxEdits: 2, ChargeNoopApproval: true}))
	pub := seedPublication(t, h.store, func(p *models.PublicationModel) {
		p.MaxEdits = 0
		p.EditCount = 2
	})
	require.NoError(t, h.store.db.Model(&models.PublicationModel{}).
		Where("id = ?", pub.ID).Update("max_edits", 0).Error)

	_, _, err := h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{Title: strPtr("x")})
	var limit *LimitError
	require.ErrorAs(t, err, &limit)
	assert.Equal(t, 2, limit.MaxEdits)
}

func TestRequestUpdateClearsPhone(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	pub := seedPublication(t, h.store)

	got, changed, err := h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{Phone: strPtr("   ")})
	require.NoError(t, err)
	assert.Equal(t, []string{"telefono"}, changed)
	require.NotNil(t, got.PendingUpdate.Phone)
	assert.Empty(t, *got.PendingUpdate.Phone)

	live, _, err := h.svc.Approve(ctx, pub.ID, "admin-1")
	require.NoError(t, err)
	assert.Empty(t, live.Phone)

	_, _, err = h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{Phone: strPtr("")})
	assert.ErrorIs(t, err, ErrNoChanges)
}

func TestRequestUpdateNormalizesFields(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	pub := seedPublication(t, h.store)

	got, changed, err := h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{
		EventTime:    strPtr("25:00"),
		Phone:        strPtr("  2222-3333 "),
		Price:        "₡1,500",
		StudentPrice: "gratis",
		SeniorPrice:  500.0,
		Links: strPtr(`[
			{"nombre":"Correo","url":"correo@example.com"},
			{"nombre":"Tel","url":"88888888"},
			{"nombre":"X","url":"https://x.com"}
		]`),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"telefono", "precio", "precioCiudadanoOro", "enlacesExternos"}, changed)

	p := got.PendingUpdate
	assert.Nil(t, p.EventTime)
	assert.Equal(t, "2222-3333", *p.Phone)
	assert.Equal(t, 1500.0, *p.Price)
	assert.Nil(t, p.StudentPrice)
	assert.Equal(t, 500.0, *p.SeniorPrice)
	assert.Nil(t, p.Attachments)
	assert.Equal(t, models.ExternalLinks{
		{Name: "Correo", URL: "mailto:correo@example.com"},
		{Name: "Tel", URL: "tel:88888888"},
		{Name: "X", URL: "https://x.com"},
	}, *p.Links)
}

func TestRequestUpdateCopiesLiveLinksWhenAbsent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	pub := seedPublication(t, h.store)

	got, changed, err := h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{Body: strPtr("Nuevo texto")})
	require.NoError(t, err)
	assert.Equal(t, []string{"contenido"}, changed)
	require.NotNil(t, got.PendingUpdate.Links)
	assert.Equal(t, pub.Links, *got.PendingUpdate.Links)

	_, err = h.svc.Cancel(ctx, pub.ID, "author-1")
	require.NoError(t, err)

	got, changed, err = h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{Links: strPtr(`[]`)})
	require.NoError(t, err)
	assert.Equal(t, []string{"enlacesExternos"}, changed)
	assert.Empty(t, *got.PendingUpdate.Links)
}

func TestRequestUpdateStrictFields(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, WithOptions(Options{MaxEdits: 3, StrictFields: true}))
	pub := seedPublication(t, h.store)

	_, _, err := h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{Price: "gratis"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "precio")

	_, _, err = h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{EventTime: strPtr("7pm")})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "horaEvento")

	_, _, err = h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{Price: "", Title: strPtr("ok")})
	assert.NoError(t, err)
}

func TestRequestUpdateImages(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	live := h.put(t, "live.png")
	pub := seedPublication(t, h.store, func(p *models.PublicationModel) {
		p.Attachments = models.Attachments{live}
	})

	got, changed, err := h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{
		KeptImages: strPtr(`[{"url":"` + live.URL + `","key":"` + live.Key + `"}]`),
		Files:      []upload.File{upload.FromBytes("nuevo.png", "image/png", []byte("png"))},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"adjunto"}, changed)
	images := *got.PendingUpdate.Attachments
	require.Len(t, images, 2)
	assert.Equal(t, live, images[0])
	assert.True(t, h.stored(t, images[1]))

	pending, err := h.ledger.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	rejected, err := h.svc.Reject(ctx, pub.ID, "admin-1", "fotos borrosas")
	require.NoError(t, err)
	assert.Equal(t, models.Attachments{live}, rejected.Attachments)
	assert.True(t, h.stored(t, live))
	assert.False(t, h.stored(t, images[1]))
}

func TestRequestUpdateDiscardsUploadsWhenNothingChanged(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	live := h.put(t, "live.png")
	pub := seedPublication(t, h.store, func(p *models.PublicationModel) {
		p.Attachments = models.Attachments{live}
	})

	_, _, err := h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{
		KeptImages: strPtr(`[{"url":"` + live.URL + `","key":"` + live.Key + `"}]`),
	})
	assert.ErrorIs(t, err, ErrNoChanges)

	_, _, err = h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{
		Files: []upload.File{upload.FromBytes("malware.exe", "application/octet-stream", []byte("MZ"))},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "archivos")

	pending, err := h.ledger.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestApproveIdenticalAttachmentsStillCharges(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	live := h.put(t, "live.png")
	pub := seedPublication(t, h.store, func(p *models.PublicationModel) {
		p.Attachments = models.Attachments{live}
	})

	_, _, err := h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{
		Title:      strPtr("Nuevo"),
		KeptImages: strPtr(`[{"url":"` + live.URL + `","key":"` + live.Key + `"}]`),
	})
	require.NoError(t, err)
	// live catches up with the proposal before review
	require.NoError(t, h.store.db.Model(&models.PublicationModel{}).
		Where("id = ?", pub.ID).Update("titulo", "Nuevo").Error)

	approved, labels, err := h.svc.Approve(ctx, pub.ID, "admin-1")
	require.NoError(t, err)
	assert.Empty(t, labels)
	assert.Equal(t, 1, approved.EditCount)
	assert.Equal(t, models.Attachments{live}, approved.Attachments)
	assert.Len(t, approved.EditHistory, 1)
	assert.True(t, h.stored(t, live))
}

func TestApproveNoopWithoutCharge(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, WithOptions(Options{MaxEdits: 3, ChargeNoopApproval: false}))
	pub := seedPublication(t, h.store)

	_, _, err := h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{Title: strPtr("Nuevo")})
	require.NoError(t, err)
	require.NoError(t, h.store.db.Model(&models.PublicationModel{}).
		Where("id = ?", pub.ID).Update("titulo", "Nuevo").Error)

	approved, labels, err := h.svc.Approve(ctx, pub.ID, "admin-1")
	require.NoError(t, err)
	assert.Empty(t, labels)
	assert.Zero(t, approved.EditCount)
	assert.Len(t, approved.EditHistory, 1)
}

func TestApproveRemovesDroppedAttachments(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	keep := h.put(t, "keep.png")
	drop := h.put(t, "drop.png")
	pub := seedPublication(t, h.store, func(p *models.PublicationModel) {
		p.Attachments = models.Attachments{keep, drop}
	})

	_, _, err := h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{
		KeptImages: strPtr(`[{"url":"` + keep.URL + `","key":"` + keep.Key + `"}]`),
		Links:      strPtr(`[]`),
		Category:   strPtr("cat-2"),
	})
	require.NoError(t, err)

	approved, labels, err := h.svc.Approve(ctx, pub.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"categoría", "enlaces externos", "adjuntos"}, labels)
	assert.Equal(t, models.Attachments{keep}, approved.Attachments)
	assert.Empty(t, approved.Links)
	assert.Equal(t, "cat-2", approved.CategoryID)
	assert.True(t, h.stored(t, keep))
	assert.False(t, h.stored(t, drop))
}

func TestRejectKeepsLiveContent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	pub := seedPublication(t, h.store, func(p *models.PublicationModel) { p.EditCount = 1 })

	_, _, err := h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{Title: strPtr("Spam"), Price: "1"})
	require.NoError(t, err)

	rejected, err := h.svc.Reject(ctx, pub.ID, "admin-1", "  contenido inapropiado ")
	require.NoError(t, err)
	assert.Equal(t, pub.Title, rejected.Title)
	assert.Equal(t, *pub.Price, *rejected.Price)
	assert.Equal(t, 1, rejected.EditCount)
	assert.False(t, rejected.HasPending())
	require.Len(t, rejected.EditHistory, 1)

	entry := rejected.EditHistory[0]
	assert.Equal(t, models.EditRejected, entry.Status)
	assert.Equal(t, "contenido inapropiado", entry.Reason)
	assert.Equal(t, "Spam", *entry.Data.Title)
	assert.Equal(t, "author-1", entry.Data.RequestedBy)
	assert.NotNil(t, entry.Data.RequestedAt)
	h.notifier.wait(t, "resolved")
	h.notifier.AssertCalled(t, "EditResolved", pub.ID, models.EditRejected)

	_, err = h.svc.Reject(ctx, pub.ID, "admin-1", "")
	assert.ErrorIs(t, err, ErrNoPending)
}

func TestHistoryVersionsAcrossApproveAndReject(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	pub := seedPublication(t, h.store)

	steps := []bool{true, false, false, true}
	for i, approve := range steps {
		_, _, err := h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{Title: strPtr("v" + string(rune('a'+i)))})
		require.NoError(t, err)
		if approve {
			_, _, err = h.svc.Approve(ctx, pub.ID, "admin-1")
		} else {
			_, err = h.svc.Reject(ctx, pub.ID, "admin-1", "")
		}
		require.NoError(t, err)
	}

	history, err := h.svc.History(ctx, pub.ID, "author-1", false)
	require.NoError(t, err)
	require.Len(t, history, len(steps))
	for i, entry := range history {
		assert.Equal(t, i+1, entry.Version)
	}

	_, err = h.svc.History(ctx, pub.ID, "stranger", false)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = h.svc.History(ctx, pub.ID, "admin-1", true)
	assert.NoError(t, err)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	pub := seedPublication(t, h.store)

	got, err := h.svc.Cancel(ctx, pub.ID, "author-1")
	require.NoError(t, err)
	assert.False(t, got.HasPending())

	_, _, err = h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{
		Files: []upload.File{upload.FromBytes("x.png", "image/png", []byte("png"))},
	})
	require.NoError(t, err)
	proposed, err := h.store.Get(ctx, pub.ID)
	require.NoError(t, err)
	fresh := (*proposed.PendingUpdate.Attachments)[0]
	require.True(t, h.stored(t, fresh))

	_, err = h.svc.Cancel(ctx, pub.ID, "intruder")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = h.svc.Cancel(ctx, pub.ID, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	got, err = h.svc.Cancel(ctx, pub.ID, "author-1")
	require.NoError(t, err)
	assert.False(t, got.HasPending())
	assert.Nil(t, got.LastEditRequest)
	assert.False(t, h.stored(t, fresh))

	after, err := h.store.Get(ctx, pub.ID)
	require.NoError(t, err)
	assert.False(t, after.HasPending())
	assert.Nil(t, after.LastEditRequest)
	assert.Empty(t, after.EditHistory)
	assert.Zero(t, after.EditCount)
}

func TestConcurrentRequestsStoreOneProposal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	pub := seedPublication(t, h.store)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded []string
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			title := "Título " + string(rune('A'+i))
			_, _, err := h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{Title: &title})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded = append(succeeded, title)
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, succeeded, 1)
	assert.Equal(t, workers-1, conflicts)

	got, err := h.store.Get(ctx, pub.ID)
	require.NoError(t, err)
	require.True(t, got.HasPending())
	assert.Equal(t, succeeded[0], *got.PendingUpdate.Title)
}

func TestConcurrentApprovalsResolveOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	pub := seedPublication(t, h.store)
	_, _, err := h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{Title: strPtr("Nuevo")})
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := h.svc.Approve(ctx, pub.ID, "admin-1")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			assert.ErrorIs(t, err, ErrNoPending)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	got, err := h.store.Get(ctx, pub.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.EditCount)
	assert.Len(t, got.EditHistory, 1)
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, WithOptions(Options{MaxEdits: 5}))

	_, err := h.svc.Create(ctx, "author-1", CreateInput{Title: "x", Body: "y", Tag: "evento", Category: "c"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "El campo precio regular es obligatorio y debe ser numérico para eventos/emprendimientos.", verr.Message)

	_, err = h.svc.Create(ctx, "author-1", CreateInput{Title: "x", Body: "y", Tag: "publicacion"})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "categoria es requerida")

	_, err = h.svc.Create(ctx, "author-1", CreateInput{Tag: "otro"})
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 3)

	_, err = h.svc.Create(ctx, "", CreateInput{})
	assert.ErrorIs(t, err, ErrUnauthenticated)

	pub, err := h.svc.Create(ctx, "author-1", CreateInput{
		Title:     "Mercado",
		Body:      "  Productos locales\n",
		Tag:       "emprendimiento",
		Category:  "cat-1",
		Price:     "₡2,000",
		EventTime: "99:00",
		Phone:     " 8888 ",
		Links:     strPtr(`[{"nombre":"Correo","url":"a@b.cr"}]`),
		Published: true,
		Files:     []upload.File{upload.FromBytes("foto.jpg", "image/jpeg", []byte("jpg"))},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, pub.MaxEdits)
	assert.Equal(t, "Productos locales", pub.Body)
	assert.Equal(t, 2000.0, *pub.Price)
	assert.Empty(t, pub.EventTime)
	assert.Equal(t, "8888", pub.Phone)
	assert.Equal(t, "mailto:a@b.cr", pub.Links[0].URL)
	assert.True(t, pub.Published)
	require.Len(t, pub.Attachments, 1)
	assert.True(t, h.stored(t, pub.Attachments[0]))
	h.notifier.wait(t, "created")

	pending, err := h.ledger.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestCreateUsesDefaultCategory(t *testing.T) {
	h := newHarness(t, WithOptions(Options{DefaultCategory: "general"}))
	pub, err := h.svc.Create(context.Background(), "author-1", CreateInput{Title: "x", Body: "y", Tag: "publicacion"})
	require.NoError(t, err)
	assert.Equal(t, "general", pub.CategoryID)
	assert.Equal(t, DefaultMaxEdits, pub.MaxEdits)
}

func TestDeleteRemovesAttachments(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	live := h.put(t, "live.png")
	pub := seedPublication(t, h.store, func(p *models.PublicationModel) {
		p.Attachments = models.Attachments{live}
	})
	_, _, err := h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{
		Files: []upload.File{upload.FromBytes("x.png", "image/png", []byte("png"))},
	})
	require.NoError(t, err)
	proposed, err := h.store.Get(ctx, pub.ID)
	require.NoError(t, err)
	fresh := (*proposed.PendingUpdate.Attachments)[0]

	assert.ErrorIs(t, h.svc.Delete(ctx, pub.ID, "intruder", false), ErrForbidden)
	require.NoError(t, h.svc.Delete(ctx, pub.ID, "admin-1", true))
	assert.False(t, h.stored(t, live))
	assert.False(t, h.stored(t, fresh))

	_, err = h.svc.Get(ctx, pub.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPendingPagination(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	for i := 0; i < 3; i++ {
		pub := seedPublication(t, h.store)
		_, _, err := h.svc.RequestUpdate(ctx, pub.ID, "author-1", EditRequestInput{Title: strPtr("nuevo")})
		require.NoError(t, err)
	}
	seedPublication(t, h.store)

	items, pag, err := h.svc.ListPending(ctx, pagination.Query{Offset: 0, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.EqualValues(t, 3, pag.Total)
	assert.Equal(t, 2, pag.Pages)

	_, pag, err = h.svc.ListPending(ctx, pagination.Query{Offset: -4, Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 0, pag.Offset)
	assert.Equal(t, pagination.MaxLimit, pag.Limit)
}

func TestSearchAndFilter(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	published := seedPublication(t, h.store, func(p *models.PublicationModel) { p.Published = true })
	draft := seedPublication(t, h.store, func(p *models.PublicationModel) {
		p.AuthorID = "author-2"
		p.Title = "Feria de invierno"
	})

	items, pag, err := h.svc.Search(ctx, "feria", "", "", pagination.Query{Limit: 12})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, published.ID, items[0].ID)
	assert.Equal(t, response.NewPagination(0, 12, 1), pag)

	_, _, err = h.svc.SearchTitles(ctx, "  ", pagination.Query{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "El parámetro de búsqueda (q) es requerido", verr.Message)

	_, total, err := h.svc.Suggest(ctx, "feria", 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)

	items, err = h.svc.Filter(ctx, "", "", "author-2")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, draft.ID, items[0].ID)

	_, err = h.svc.Filter(ctx, " ", "", "")
	require.ErrorAs(t, err, &verr)

	_, err = h.svc.Filter(ctx, "nada parecido", "", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEventsByDateValidatesRange(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	pub := seedPublication(t, h.store, func(p *models.PublicationModel) {
		p.Published = true
		p.EventDate = "2026-11-30"
	})

	items, err := h.svc.EventsByDate(ctx, "2026-11-01", "2026-11-30")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, pub.ID, items[0].ID)

	items, err = h.svc.EventsByDate(ctx, "2026-12-01", "2026-11-01")
	require.NoError(t, err)
	assert.Empty(t, items)

	var verr *ValidationError
	_, err = h.svc.EventsByDate(ctx, "2026-11-01", "")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Se requieren startDate y endDate", verr.Message)

	_, err = h.svc.EventsByDate(ctx, "01/11/2026", "2026-11-30")
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "startDate")
}

func TestAddComment(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	pub := seedPublication(t, h.store)

	_, err := h.svc.AddComment(ctx, pub.ID, "", "hola")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	var verr *ValidationError
	_, err = h.svc.AddComment(ctx, pub.ID, "reader-1", "   ")
	require.ErrorAs(t, err, &verr)

	_, err = h.svc.AddComment(ctx, "missing", "reader-1", "hola")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := h.svc.AddComment(ctx, pub.ID, "reader-1", "  ¡Nos vemos ahí!  ")
	require.NoError(t, err)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "reader-1", got.Comments[0].AuthorID)
	assert.Equal(t, "¡Nos vemos ahí!", got.Comments[0].Body)
	assert.False(t, got.Comments[0].CreatedAt.IsZero())
}
