package workers

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aaronsb/screentimed/internal/domain"
)

type fakeWorker struct {
	name      string
	available bool
	result    []domain.DetectedActivity
	err       error
}

func (f *fakeWorker) Name() string      { return f.name }
func (f *fakeWorker) IsAvailable() bool { return f.available }
func (f *fakeWorker) Scan(context.Context, domain.User) ([]domain.DetectedActivity, error) {
	return f.result, f.err
}

func TestScanAll_MergesActivitiesAcrossWorkers(t *testing.T) {
	a := &fakeWorker{name: "process", available: true, result: []domain.DetectedActivity{{Key: "steam"}}}
	b := &fakeWorker{name: "chrome", available: true, result: []domain.DetectedActivity{{Key: "reddit.com"}}}

	merged := ScanAll(context.Background(), domain.User{Name: "alice"}, []Worker{a, b}, nil)
	assert.Len(t, merged, 2)
}

func TestScanAll_SkipsUnavailableWorkers(t *testing.T) {
	a := &fakeWorker{name: "process", available: false, result: []domain.DetectedActivity{{Key: "steam"}}}
	b := &fakeWorker{name: "chrome", available: true, result: []domain.DetectedActivity{{Key: "reddit.com"}}}

	merged := ScanAll(context.Background(), domain.User{Name: "alice"}, []Worker{a, b}, nil)
	assert.Len(t, merged, 1)
	assert.Equal(t, "reddit.com", merged[0].Key)
}

func TestScanAll_OneWorkerErrorDoesNotBlindTheOthers(t *testing.T) {
	a := &fakeWorker{name: "process", available: true, err: fmt.Errorf("enumerate failed")}
	b := &fakeWorker{name: "chrome", available: true, result: []domain.DetectedActivity{{Key: "reddit.com"}}}

	var failed []string
	merged := ScanAll(context.Background(), domain.User{Name: "alice"}, []Worker{a, b}, func(worker string, err error) {
		failed = append(failed, worker)
	})
	assert.Len(t, merged, 1)
	assert.Equal(t, []string{"process"}, failed)
}
