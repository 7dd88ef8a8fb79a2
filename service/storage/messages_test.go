package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestBuildHistoryFilterGroup(t *testing.T) {
	f := buildHistoryFilter(HistoryFilter{GroupID: "g1", UserA: "alice"})
	assert.Equal(t, bson.M{"group_id": "g1"}, f)
}

func TestBuildHistoryFilterDirect(t *testing.T) {
	f := buildHistoryFilter(HistoryFilter{UserA: "alice", UserB: "bob"})
	or, ok := f["$or"].(bson.A)
	if !ok {
		t.Fatalf("expected $or clause, got %#v", f)
	}
	assert.Len(t, or, 2)
	assert.Contains(t, or, bson.M{"sender": "alice", "receiver": "bob"})
	assert.Contains(t, or, bson.M{"sender": "bob", "receiver": "alice"})
}
