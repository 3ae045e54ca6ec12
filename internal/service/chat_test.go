package service

import (
	"strings"
	"testing"
	"time"

	"shopadmin/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnippet(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"short body untouched", "hi", "hi"},
		{"exactly 50 chars untouched", strings.Repeat("a", 50), strings.Repeat("a", 50)},
		{"51 chars truncated", strings.Repeat("a", 51), strings.Repeat("a", 50) + "..."},
		{"long body truncated", strings.Repeat("x", 200), strings.Repeat("x", 50) + "..."},
		{"empty body", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Snippet(tt.body))
		})
	}
}

func TestSnippet_MultibyteSafe(t *testing.T) {
	body := strings.Repeat("中", 60)
	got := Snippet(body)
	assert.Equal(t, strings.Repeat("中", 50)+"...", got)
}

func TestBuildSummaries_Ordering(t *testing.T) {
	// 伙伴 A 在 t1、C 在 t2、B 在 t3 有消息，期望顺序 [B, C, A]。
	const me, a, b, c = uint(1), uint(2), uint(3), uint(4)
	t1 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	t3 := t1.Add(2 * time.Minute)

	msgs := []models.ChatMessage{
		{ID: 1, SenderID: a, ReceiverID: me, Body: "from a", CreatedAt: t1},
		{ID: 2, SenderID: me, ReceiverID: c, Body: "to c", CreatedAt: t2},
		{ID: 3, SenderID: b, ReceiverID: me, Body: "from b", CreatedAt: t3},
	}

	summaries := buildSummaries(me, msgs)
	require.Len(t, summaries, 3)
	assert.Equal(t, b, summaries[0].PartnerID)
	assert.Equal(t, c, summaries[1].PartnerID)
	assert.Equal(t, a, summaries[2].PartnerID)
}

func TestBuildSummaries_UnreadAndSnippet(t *testing.T) {
	const me, partner = uint(1), uint(2)
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	longBody := strings.Repeat("z", 80)

	msgs := []models.ChatMessage{
		{ID: 1, SenderID: partner, ReceiverID: me, Body: "unread one", Read: false, CreatedAt: base},
		{ID: 2, SenderID: partner, ReceiverID: me, Body: "already read", Read: true, CreatedAt: base.Add(time.Minute)},
		{ID: 3, SenderID: me, ReceiverID: partner, Body: "my own unread reply", Read: false, CreatedAt: base.Add(2 * time.Minute)},
		{ID: 4, SenderID: partner, ReceiverID: me, Body: longBody, Read: false, CreatedAt: base.Add(3 * time.Minute)},
	}

	summaries := buildSummaries(me, msgs)
	require.Len(t, summaries, 1)
	sum := summaries[0]
	assert.Equal(t, partner, sum.PartnerID)
	// 只统计发给当前用户且未读的消息，自己发出的不算。
	assert.Equal(t, 2, sum.UnreadCount)
	assert.Equal(t, strings.Repeat("z", 50)+"...", sum.LastMessage)
	assert.True(t, sum.LastMessageAt.Equal(base.Add(3*time.Minute)))
}

func TestBuildSummaries_Empty(t *testing.T) {
	summaries := buildSummaries(1, nil)
	assert.Empty(t, summaries)
}
