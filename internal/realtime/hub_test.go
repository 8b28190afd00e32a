package realtime

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

func testHub() *Hub {
	return NewHub(slog.Default())
}

// ---------------------------------------------------------------------------
// shouldSend tests
// ---------------------------------------------------------------------------

func TestShouldSend_AllEvents(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{AllEvents: true}}

	event := &Event{Type: "commission.recorded", Timestamp: time.Now()}
	if !h.shouldSend(client, event) {
		t.Error("AllEvents client should receive all events")
	}
}

func TestShouldSend_EventFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		Events: []string{"commission.paid", "commission.disputed"},
	}}

	paid := &Event{Type: "commission.paid"}
	disputed := &Event{Type: "commission.disputed"}
	onboarded := &Event{Type: "customer.onboarded"}

	if !h.shouldSend(client, paid) {
		t.Error("Should receive commission.paid events")
	}
	if !h.shouldSend(client, disputed) {
		t.Error("Should receive commission.disputed events")
	}
	if h.shouldSend(client, onboarded) {
		t.Error("Should NOT receive customer.onboarded events")
	}
}

func TestShouldSend_PartnerFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		PartnerIDs: []string{"ptn_mine"},
	}}

	matching := &Event{
		Type: "commission.recorded",
		Data: map[string]any{"partnerId": "ptn_mine"},
	}
	notMatching := &Event{
		Type: "commission.recorded",
		Data: map[string]any{"partnerId": "ptn_other"},
	}

	if !h.shouldSend(client, matching) {
		t.Error("Should match on partnerId")
	}
	if h.shouldSend(client, notMatching) {
		t.Error("Should NOT match other partners")
	}
}

func TestShouldSend_MinCommissionFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		MinCommissionCents: 10_000,
	}}

	large := &Event{
		Type: "commission.recorded",
		Data: map[string]any{"commissionAmountCents": 15000.0},
	}
	small := &Event{
		Type: "commission.recorded",
		Data: map[string]any{"commissionAmountCents": 500.0},
	}
	churn := &Event{
		Type: "customer.churned",
		Data: map[string]any{"partnerId": "ptn_1"},
	}

	if !h.shouldSend(client, large) {
		t.Error("Should receive large commission")
	}
	if h.shouldSend(client, small) {
		t.Error("Should NOT receive small commission")
	}
	if !h.shouldSend(client, churn) {
		t.Error("Amount filter should only apply to events carrying an amount")
	}
}

func TestShouldSend_EmptySubscription(t *testing.T) {
	h := testHub()

	// No filters, not AllEvents
	client := &Client{sub: Subscription{}}

	event := &Event{Type: "commission.recorded"}
	if !h.shouldSend(client, event) {
		t.Error("Empty subscription (no filters) should receive events")
	}
}

func TestShouldSend_NonMapData(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		PartnerIDs: []string{"ptn_1"},
	}}

	// Event with non-map data should not crash
	event := &Event{
		Type: "commission.recorded",
		Data: "string data not a map",
	}

	// Partner filter can't extract an ID from non-map data, so the event
	// is dropped rather than leaked to the wrong partner.
	if h.shouldSend(client, event) {
		t.Error("Partner-filtered client should not receive unattributable events")
	}
}

// ---------------------------------------------------------------------------
// Hub lifecycle tests
// ---------------------------------------------------------------------------

func TestHub_Stats_Initial(t *testing.T) {
	h := testHub()

	stats := h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients, got %v", stats["connectedClients"])
	}
	if stats["totalEvents"].(int64) != 0 {
		t.Errorf("Expected 0 total events, got %v", stats["totalEvents"])
	}
}

func TestHub_BroadcastAndStats(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	h.Broadcast(&Event{Type: "commission.recorded", Timestamp: time.Now()})
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["totalEvents"].(int64) != 1 {
		t.Errorf("Expected 1 total event, got %v", stats["totalEvents"])
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	stats := h.Stats()
	if stats["connectedClients"].(int) != 1 {
		t.Errorf("Expected 1 connected client, got %v", stats["connectedClients"])
	}
	if stats["peakClients"].(int64) != 1 {
		t.Errorf("Expected peak 1, got %v", stats["peakClients"])
	}

	h.unregister <- client
	time.Sleep(50 * time.Millisecond)

	stats = h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients after unregister, got %v", stats["connectedClients"])
	}
	// Peak should still be 1
	if stats["peakClients"].(int64) != 1 {
		t.Errorf("Expected peak still 1, got %v", stats["peakClients"])
	}
}

func TestHub_BroadcastToClient(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{AllEvents: true},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	h.Broadcast(&Event{
		Type:      "commission.recorded",
		Timestamp: time.Now(),
		Data:      map[string]any{"partnerId": "ptn_1", "commissionAmountCents": 20000.0},
	})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Timeout waiting for broadcast")
	}
}

func TestHub_EmitFlattensPayload(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{PartnerIDs: []string{"ptn_1"}},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	// A typed payload is flattened so the partner filter can see it.
	type payload struct {
		PartnerID string `json:"partnerId"`
		Amount    int64  `json:"commissionAmountCents"`
	}
	h.Emit(ctx, "commission.approved", payload{PartnerID: "ptn_1", Amount: 500})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Client should receive its own partner's event")
	}
}

func TestHub_ContextCancellation(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
		// Hub stopped
	case <-time.After(2 * time.Second):
		t.Error("Hub did not stop after context cancellation")
	}
}

func TestHub_FilteredBroadcast(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	// Client only wants churn events
	client := &Client{
		hub:  h,
		send: make(chan []byte, 256),
		sub:  Subscription{Events: []string{"customer.churned"}},
	}

	h.register <- client
	time.Sleep(50 * time.Millisecond)

	// Send a commission event (should be filtered out)
	h.Broadcast(&Event{Type: "commission.recorded", Timestamp: time.Now()})
	time.Sleep(100 * time.Millisecond)

	select {
	case <-client.send:
		t.Error("Client should NOT receive commission event")
	default:
		// Good - filtered out
	}

	// Send a churn event (should be received)
	h.Broadcast(&Event{Type: "customer.churned", Timestamp: time.Now()})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("Expected non-empty message")
		}
	case <-time.After(time.Second):
		t.Error("Client should receive churn event")
	}
}
