//go:build integration

package integration

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

type statusChange struct {
	TargetID  int64     `json:"target_id"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	At        time.Time `json:"at"`
}

func TestNotifier_SendsAlertOnStatusChange(t *testing.T) {
	cfg := LoadCfg()
	EnsureTopic(t, cfg.KafkaBootstrap, cfg.StatusTopic)

	db := DBOpen(t, cfg.DBDSN)
	defer db.Close()

	id := RandID()
	SeedTarget(t, db, id, "flappy", "http://http-echo:80/", 30, true)

	MailhogPurge(t, cfg.MailhogAPI)

	PublishJSON(t, cfg.KafkaBootstrap, cfg.StatusTopic, KeyFromInt64(id), statusChange{
		TargetID:  id,
		OldStatus: "online",
		NewStatus: "offline",
		At:        time.Now().UTC(),
	})

	mh := WaitMailhogCount(t, cfg.MailhogAPI, 1, 60*time.Second)
	if mh.Total < 1 {
		t.Fatalf("no alert mail arrived")
	}
	body := mh.Items[0].Content.Body
	if !strings.Contains(body, "offline") {
		t.Fatalf("alert body missing new status: %s", body)
	}
	if !strings.Contains(body, fmt.Sprintf("%d", id)) && !strings.Contains(body, "flappy") {
		t.Fatalf("alert body does not identify the target: %s", body)
	}
}

func TestNotifier_MalformedEventDoesNotWedge(t *testing.T) {
	cfg := LoadCfg()
	EnsureTopic(t, cfg.KafkaBootstrap, cfg.StatusTopic)

	db := DBOpen(t, cfg.DBDSN)
	defer db.Close()

	MailhogPurge(t, cfg.MailhogAPI)

	// A bad payload must be skipped, not retried forever.
	PublishJSON(t, cfg.KafkaBootstrap, cfg.StatusTopic, []byte("junk"), "not a status change")

	id := RandID()
	SeedTarget(t, db, id, "after-junk", "http://http-echo:80/", 30, true)
	PublishJSON(t, cfg.KafkaBootstrap, cfg.StatusTopic, KeyFromInt64(id), statusChange{
		TargetID:  id,
		OldStatus: "online",
		NewStatus: "offline",
		At:        time.Now().UTC(),
	})

	mh := WaitMailhogCount(t, cfg.MailhogAPI, 1, 60*time.Second)
	if mh.Total < 1 {
		t.Fatalf("valid event after malformed one produced no mail")
	}
}
