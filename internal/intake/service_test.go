package intake

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/phoenix-garage/garage/internal/jobcard"
	"github.com/phoenix-garage/garage/internal/platform/blob"
	"github.com/phoenix-garage/garage/internal/shared"
)

type fakeJobs struct {
	created []jobcard.NewJob
	jobs    map[string]jobcard.Job
	err     error
}

func (f *fakeJobs) Create(_ context.Context, in jobcard.NewJob) (jobcard.Job, error) {
	if f.err != nil {
		return jobcard.Job{}, f.err
	}
	f.created = append(f.created, in)
	job := jobcard.Job{
		ID:            "JC-0042",
		CustomerName:  in.CustomerName,
		NumberPlate:   in.NumberPlate,
		Status:        jobcard.StatusOpen,
		PaymentStatus: jobcard.PaymentUnpaid,
		VehicleImages: in.VehicleImages,
		Complaints:    in.Complaints,
	}
	if f.jobs == nil {
		f.jobs = map[string]jobcard.Job{}
	}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeJobs) Get(_ context.Context, id string) (jobcard.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return jobcard.Job{}, shared.ErrNotFound
	}
	return job, nil
}

type fakeUploader struct {
	fail map[string]bool
}

func (u fakeUploader) Upload(_ context.Context, _ []byte, filename, _ string) (blob.Object, error) {
	if u.fail[filename] {
		return blob.Object{}, shared.ErrUpload
	}
	return blob.Object{URL: "https://img.example/" + filename, FileID: filename}, nil
}

type memoryIdem struct {
	keys map[string]bool
}

func (m *memoryIdem) CheckAndInsert(_ context.Context, key, _ string) error {
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memoryIdem) Delete(_ context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

type countingObserver struct{ failures int }

func (o *countingObserver) ObserveUploadFailure(string) { o.failures++ }

type fixture struct {
	mr       *miniredis.Miniredis
	svc      *Service
	jobs     *fakeJobs
	idem     *memoryIdem
	observer *countingObserver
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := fixture{
		mr:       mr,
		jobs:     &fakeJobs{},
		idem:     &memoryIdem{keys: map[string]bool{}},
		observer: &countingObserver{},
	}
	uploader := fakeUploader{fail: map[string]bool{"broken.jpg": true}}
	f.svc = NewService(NewDraftStore(client, time.Hour), f.jobs, uploader, f.idem, f.observer, nil)
	return f
}

func ptr[T any](v T) *T { return &v }

// walk fills every step and returns a draft positioned on review.
func walk(t *testing.T, svc *Service) Draft {
	t.Helper()
	ctx := context.Background()
	d, err := svc.Start(ctx)
	require.NoError(t, err)

	_, err = svc.Update(ctx, d.ID, FormPatch{CustomerName: ptr("Asha"), Phone: ptr("9999999999")})
	require.NoError(t, err)
	_, err = svc.Next(ctx, d.ID)
	require.NoError(t, err)
	_, err = svc.Update(ctx, d.ID, FormPatch{Brand: ptr("Hyundai"), Model: ptr("i20"), NumberPlate: ptr("kl 07  ab 1234")})
	require.NoError(t, err)
	_, err = svc.Next(ctx, d.ID)
	require.NoError(t, err)
	_, err = svc.ToggleComplaint(ctx, d.ID, "Brake Issue")
	require.NoError(t, err)
	d, err = svc.Next(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, StepReview, d.Step)
	return d
}

func TestNewDraftDefaults(t *testing.T) {
	f := newFixture(t)
	d, err := f.svc.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, StepCustomer, d.Step)
	require.Equal(t, "Customer", d.StepName)
	require.Equal(t, DefaultFuelLevel, d.Form.FuelLevel)
	require.Empty(t, d.Form.Complaints)
	require.True(t, f.mr.Exists("intake:draft:"+d.ID))
}

func TestStepGates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, err := f.svc.Start(ctx)
	require.NoError(t, err)

	_, err = f.svc.Next(ctx, d.ID)
	var fe *shared.FieldError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "customerName", fe.Field)

	_, err = f.svc.Update(ctx, d.ID, FormPatch{CustomerName: ptr("Asha")})
	require.NoError(t, err)
	_, err = f.svc.Next(ctx, d.ID)
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "phone", fe.Field)

	_, err = f.svc.Update(ctx, d.ID, FormPatch{Phone: ptr("9999999999")})
	require.NoError(t, err)
	d, err = f.svc.Next(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, StepVehicle, d.Step)

	_, err = f.svc.Update(ctx, d.ID, FormPatch{Brand: ptr("Tata"), NumberPlate: ptr("KA01")})
	require.NoError(t, err)
	_, err = f.svc.Next(ctx, d.ID)
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "model", fe.Field)

	_, err = f.svc.Update(ctx, d.ID, FormPatch{Model: ptr("Nexon")})
	require.NoError(t, err)
	d, err = f.svc.Next(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, StepComplaints, d.Step)

	_, err = f.svc.Next(ctx, d.ID)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.Update(ctx, d.ID, FormPatch{Notes: ptr("rattle over bumps")})
	require.NoError(t, err)
	d, err = f.svc.Next(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, StepReview, d.Step)

	// Review is terminal for Next.
	d, err = f.svc.Next(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, StepReview, d.Step)
}

func TestBackStopsAtFirstStep(t *testing.T) {
	f := newFixture(t)
	d := walk(t, f.svc)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		var err error
		d, err = f.svc.Back(ctx, d.ID)
		require.NoError(t, err)
	}
	require.Equal(t, StepCustomer, d.Step)
	require.Equal(t, "Asha", d.Form.CustomerName)
}

func TestFormPatchNormalization(t *testing.T) {
	form := Form{Brand: "Hyundai", Model: "i20"}
	require.NoError(t, FormPatch{NumberPlate: ptr("  ka 01   ab 1234 ")}.apply(&form))
	require.Equal(t, "KA 01 AB 1234", form.NumberPlate)

	require.NoError(t, FormPatch{Brand: ptr("Tata")}.apply(&form))
	require.Empty(t, form.Model)

	require.NoError(t, FormPatch{Brand: ptr("Honda"), Model: ptr("City")}.apply(&form))
	require.Equal(t, "City", form.Model)

	require.ErrorIs(t, FormPatch{FuelLevel: ptr(101)}.apply(&form), shared.ErrValidation)
	require.ErrorIs(t, FormPatch{FuelType: ptr("Steam")}.apply(&form), shared.ErrValidation)
	require.NoError(t, FormPatch{Complaints: &[]string{"Oil Leak", " ", "Oil Leak"}}.apply(&form))
	require.Equal(t, []string{"Oil Leak"}, form.Complaints)
}

func TestToggleComplaintAndRemoveImage(t *testing.T) {
	d := NewDraft("d1", time.Now())
	require.NoError(t, d.ToggleComplaint("Engine Noise"))
	require.NoError(t, d.ToggleComplaint("Oil Leak"))
	require.NoError(t, d.ToggleComplaint("Engine Noise"))
	require.Equal(t, []string{"Oil Leak"}, d.Form.Complaints)
	require.Error(t, d.ToggleComplaint(" "))

	d.Form.VehicleImages = []string{"a", "b", "c"}
	require.NoError(t, d.RemoveImage(1))
	require.Equal(t, []string{"a", "c"}, d.Form.VehicleImages)
	require.ErrorIs(t, d.RemoveImage(2), shared.ErrValidation)
}

func TestAttachImagesToleratesFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, err := f.svc.Start(ctx)
	require.NoError(t, err)

	res, err := f.svc.AttachImages(ctx, d.ID, []File{
		{Name: "front.jpg", Data: []byte{1}},
		{Name: "broken.jpg", Data: []byte{2}},
		{Name: "rear.jpg", Data: []byte{3}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"broken.jpg"}, res.Failed)
	require.Equal(t, []string{"https://img.example/front.jpg", "https://img.example/rear.jpg"}, res.Draft.Form.VehicleImages)
	require.Equal(t, 1, f.observer.failures)

	stored, err := f.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, stored.Form.VehicleImages, 2)
}

func TestCreateOnlyFromReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, err := f.svc.Start(ctx)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, d.ID, false)
	require.ErrorIs(t, err, ErrNotReviewStep)
	require.Empty(t, f.jobs.created)
}

func TestCreateRechecksGates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := walk(t, f.svc)

	_, err := f.svc.Update(ctx, d.ID, FormPatch{Phone: ptr("")})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, d.ID, false)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, f.jobs.created)
}

func TestCreateIsIdempotentPerDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := walk(t, f.svc)

	res, err := f.svc.Create(ctx, d.ID, true)
	require.NoError(t, err)
	require.Equal(t, "/job-card/JC-0042?autoprint=true", res.Redirect)
	require.Equal(t, "KL 07 AB 1234", res.Job.NumberPlate)
	require.Equal(t, []string{"Brake Issue"}, res.Job.Complaints)
	require.True(t, f.idem.keys["intake:"+d.ID])

	again, err := f.svc.Create(ctx, d.ID, false)
	require.NoError(t, err)
	require.Equal(t, "/jobs", again.Redirect)
	require.Equal(t, res.Job.ID, again.Job.ID)
	require.Len(t, f.jobs.created, 1)

	_, err = f.svc.Update(ctx, d.ID, FormPatch{Notes: ptr("late edit")})
	require.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestCreateFailureReleasesIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := walk(t, f.svc)

	f.jobs.err = errors.New("db down")
	_, err := f.svc.Create(ctx, d.ID, false)
	require.Error(t, err)
	require.False(t, f.idem.keys["intake:"+d.ID])

	f.jobs.err = nil
	res, err := f.svc.Create(ctx, d.ID, false)
	require.NoError(t, err)
	require.Equal(t, "JC-0042", res.Job.ID)
}

func TestDraftExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, err := f.svc.Start(ctx)
	require.NoError(t, err)

	f.mr.FastForward(2 * time.Hour)
	_, err = f.svc.Get(ctx, d.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestHandlerFlow(t *testing.T) {
	f := newFixture(t)
	r := chi.NewRouter()
	NewHandler(f.svc.logger, f.svc, 0).MountRoutes(r)

	do := func(method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		var env map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		return rec, env
	}

	rec, env := do(http.MethodPost, "/", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	id := env["data"].(map[string]any)["id"].(string)

	rec, env = do(http.MethodPost, "/"+id+"/next", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "error", env["status"])

	rec, _ = do(http.MethodPatch, "/"+id, `{"customerName":"Asha","phone":"9999999999"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, env = do(http.MethodPost, "/"+id+"/next", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, StepVehicle, env["data"].(map[string]any)["step"])

	rec, _ = do(http.MethodPost, "/"+id+"/create", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(http.MethodGet, "/does-not-exist", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = do(http.MethodGet, "/options", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env["data"].(map[string]any)["complaints"], len(CommonComplaints))
}
