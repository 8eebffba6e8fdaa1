package warp

import (
	"net"
	"testing"
)

func TestLedgerRecordAndTake(t *testing.T) {
	l := NewLedger()
	routes := []RouteEntry{
		{Destination: IPNetwork{IP: net.ParseIP("10.0.0.0"), Prefix: 8}, Gateway: net.ParseIP("172.17.0.5"), Metric: metricRule},
	}

	l.Record("c1", routes)
	if !l.Has("c1") {
		t.Fatal("Has(c1) = false after Record")
	}
	if l.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", l.Len())
	}

	got, ok := l.Take("c1")
	if !ok {
		t.Fatal("Take(c1) ok = false, want true")
	}
	if len(got) != 1 || !got[0].Gateway.Equal(routes[0].Gateway) {
		t.Errorf("Take(c1) = %+v, want %+v", got, routes)
	}
	if l.Has("c1") {
		t.Error("Has(c1) = true after Take, want false")
	}
}

func TestLedgerTakeUnknownContainer(t *testing.T) {
	l := NewLedger()
	_, ok := l.Take("missing")
	if ok {
		t.Fatal("Take(missing) ok = true, want false")
	}
}

func TestLedgerTakeIsIdempotent(t *testing.T) {
	l := NewLedger()
	l.Record("c1", []RouteEntry{{Destination: IPNetwork{IP: net.ParseIP("10.0.0.0"), Prefix: 8}}})

	_, ok := l.Take("c1")
	if !ok {
		t.Fatal("first Take(c1) ok = false")
	}
	_, ok = l.Take("c1")
	if ok {
		t.Fatal("second Take(c1) ok = true, want false: Take must be idempotent")
	}
}

func TestLedgerRecordDoesNotAliasCallerSlice(t *testing.T) {
	l := NewLedger()
	routes := []RouteEntry{
		{Destination: IPNetwork{IP: net.ParseIP("10.0.0.0"), Prefix: 8}, Metric: metricRule},
	}
	l.Record("c1", routes)
	routes[0].Metric = 999

	got, _ := l.Take("c1")
	if got[0].Metric == 999 {
		t.Fatal("Record aliased the caller's slice: mutating it after Record changed the ledger's copy")
	}
}

func TestLedgerRecordOverwritesPriorEntry(t *testing.T) {
	l := NewLedger()
	l.Record("c1", []RouteEntry{{Metric: metricRule}})
	l.Record("c1", []RouteEntry{{Metric: metricHost}, {Metric: metricDefault}})

	got, ok := l.Take("c1")
	if !ok {
		t.Fatal("Take(c1) ok = false")
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2: second Record should replace, not append", len(got))
	}
}
