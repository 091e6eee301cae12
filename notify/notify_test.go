package notify

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"food-ordering-api/config"
	"food-ordering-api/i18n"
	"food-ordering-api/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPusher struct {
	users []uint
}

func (p *recordingPusher) Push(userID uint, _ interface{}) int {
	p.users = append(p.users, userID)
	return 1
}

func TestFromTemplateInsertsLocalizedRow(t *testing.T) {
	db, err := config.OpenMemoryDB("notify_from_template")
	require.NoError(t, err)

	p := &recordingPusher{}
	svc := NewService(p)
	orderID := uint(7)
	n, err := svc.FromTemplate(db, 3, &orderID, i18n.TemplateOrderCreated, "de",
		map[string]string{"orderNumber": "ORD-1", "total": "Fr. 10.00.-"})
	require.NoError(t, err)
	assert.NotZero(t, n.ID)
	assert.Contains(t, n.Message, "ORD-1")

	var stored models.Notification
	require.NoError(t, db.First(&stored, n.ID).Error)
	assert.Equal(t, uint(3), stored.UserID)
	assert.Equal(t, i18n.TemplateOrderCreated, stored.Type)

	svc.Push(n, nil)
	assert.Equal(t, []uint{3}, p.users)

	_, err = svc.FromTemplate(db, 3, nil, "no_such_template", "en", nil)
	assert.Error(t, err)
}

func TestHubDeliversToConnectedUser(t *testing.T) {
	hub := NewHub("*")
	defer hub.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.Atoi(r.URL.Query().Get("user"))
		_ = hub.Serve(w, r, uint(id))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user=5"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Connections(5) == 1 }, time.Second, 10*time.Millisecond)

	assert.Equal(t, 0, hub.Push(6, map[string]string{"hello": "nobody"}))
	assert.Equal(t, 1, hub.Push(5, map[string]string{"hello": "five"}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"hello":"five"}`, string(msg))

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Connections(5) == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubCapsConnectionsPerUser(t *testing.T) {
	hub := NewHub("*")
	hub.MaxPerUser = 1
	defer hub.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hub.Serve(w, r, 7); errors.Is(err, ErrTooManyConnections) {
			w.WriteHeader(http.StatusTooManyRequests)
		}
	}))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer first.Close()
	require.Eventually(t, func() bool { return hub.Connections(7) == 1 }, time.Second, 10*time.Millisecond)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	first.Close()
	require.Eventually(t, func() bool { return hub.Connections(7) == 0 }, time.Second, 10*time.Millisecond)
	second, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	second.Close()
}
