package sweeper

import (
	"context"
	"fmt"
	"testing"

	"github.com/c360studio/nimbusd/internal/deploy"
	"github.com/c360studio/nimbusd/internal/jobmodel"
)

type fakeStore struct {
	due        []jobmodel.Job
	expired    []string
	expireFail map[string]bool
}

func (s *fakeStore) JobsDueForSweep(context.Context, int) ([]jobmodel.Job, error) {
	return s.due, nil
}

func (s *fakeStore) ExpireJob(_ context.Context, id string) error {
	if s.expireFail[id] {
		return fmt.Errorf("expire failed for %s", id)
	}
	s.expired = append(s.expired, id)
	return nil
}

type fakeArchive struct {
	deleted  []string
	failKeys map[string]bool
}

func (a *fakeArchive) Delete(_ context.Context, key string) error {
	if a.failKeys[key] {
		return fmt.Errorf("delete failed for %s", key)
	}
	a.deleted = append(a.deleted, key)
	return nil
}

func strPtr(s string) *string { return &s }

func TestSweepOne_DeletesLogsAndExpiresJob(t *testing.T) {
	store := &fakeStore{}
	archive := &fakeArchive{failKeys: map[string]bool{}}
	s := &Sweeper{Store: store, Archive: archive}

	job := jobmodel.Job{ID: "job-1", BuildLogKey: strPtr("jobs/job-1/build.log"), DeployLogKey: strPtr("jobs/job-1/deploy.log")}
	s.sweepOne(context.Background(), job)

	if len(archive.deleted) != 2 {
		t.Fatalf("deleted = %v, want 2 keys", archive.deleted)
	}
	if len(store.expired) != 1 || store.expired[0] != "job-1" {
		t.Fatalf("expired = %v, want [job-1]", store.expired)
	}
}

func TestSweepOne_ArchiveDeleteFailureStillExpiresJob(t *testing.T) {
	store := &fakeStore{}
	archive := &fakeArchive{failKeys: map[string]bool{"jobs/job-1/build.log": true}}
	s := &Sweeper{Store: store, Archive: archive}

	job := jobmodel.Job{ID: "job-1", BuildLogKey: strPtr("jobs/job-1/build.log"), DeployLogKey: strPtr("jobs/job-1/deploy.log")}
	s.sweepOne(context.Background(), job)

	if len(store.expired) != 1 {
		t.Fatal("a failed log delete must not prevent the job from being expired")
	}
}

func TestSweepOne_NoWorkerNameSkipsDeleteWorker(t *testing.T) {
	store := &fakeStore{}
	archive := &fakeArchive{}
	s := &Sweeper{Store: store, Archive: archive, Deploy: deploy.Credentials{}}

	job := jobmodel.Job{ID: "job-1"}
	s.sweepOne(context.Background(), job)

	if len(store.expired) != 1 {
		t.Fatal("job with no worker name should still be expired")
	}
}

func TestSweepOne_MissingCredentialsDoesNotBlockExpiry(t *testing.T) {
	// deploy.DeleteWorker returns apperr.ConfigMissing when Deploy has no
	// credentials configured; the sweeper must treat this as "nothing to
	// delete" rather than a failure that blocks expiry.
	store := &fakeStore{}
	archive := &fakeArchive{}
	s := &Sweeper{Store: store, Archive: archive, Deploy: deploy.Credentials{}}

	job := jobmodel.Job{ID: "job-1", WorkerName: strPtr("nimbus-abc123")}
	s.sweepOne(context.Background(), job)

	if len(store.expired) != 1 {
		t.Fatal("missing cloudflare credentials should not block expiry")
	}
}

func TestRunOnce_OneJobsExpireFailureDoesNotBlockTheRest(t *testing.T) {
	store := &fakeStore{
		due: []jobmodel.Job{
			{ID: "job-1"},
			{ID: "job-2"},
		},
		expireFail: map[string]bool{"job-1": true},
	}
	archive := &fakeArchive{}
	s := &Sweeper{Store: store, Archive: archive}

	s.RunOnce(context.Background())

	if len(store.expired) != 1 || store.expired[0] != "job-2" {
		t.Fatalf("expired = %v, want only job-2 to succeed", store.expired)
	}
}

func TestRunOnce_NoJobsDueIsNoop(t *testing.T) {
	store := &fakeStore{}
	archive := &fakeArchive{}
	s := &Sweeper{Store: store, Archive: archive}

	s.RunOnce(context.Background())

	if len(store.expired) != 0 {
		t.Fatal("expected no expirations when no jobs are due")
	}
}
