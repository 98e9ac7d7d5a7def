package queue

import (
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
)

func TestDecodeRecord_RoundTrip(t *testing.T) {
	rec := &domain.JobRecord{
		ID:          "job-1",
		Queue:       domain.QueueEnrich,
		Payload:     []byte(`{"user_id":"00000000-0000-0000-0000-000000000000","video_ids":["v1"]}`),
		MaxAttempts: 5,
		Status:      domain.JobStatusPending,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	values := map[string]interface{}{"record": string(data)}
	got, err := decodeRecord(values)
	if err != nil {
		t.Fatalf("decodeRecord: %v", err)
	}
	if got.ID != rec.ID || got.Queue != rec.Queue || got.MaxAttempts != rec.MaxAttempts {
		t.Errorf("decodeRecord() = %+v, want a copy of %+v", got, rec)
	}
}

func TestDecodeRecord_MissingField(t *testing.T) {
	if _, err := decodeRecord(map[string]interface{}{}); err == nil {
		t.Fatal("expected an error when the record field is absent")
	}
}

func TestStreamKey_PerQueue(t *testing.T) {
	if streamKey(domain.QueueEmailProcess) == streamKey(domain.QueueEnrich) {
		t.Error("expected distinct stream keys per queue")
	}
}
