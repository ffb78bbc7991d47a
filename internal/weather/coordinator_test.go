package weather

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

// fakeClient answers fetches by coordinates, tracks call counts, and
// can block in-flight fetches until released.
type fakeClient struct {
	mu      sync.Mutex
	calls   int
	respond func(coords Coordinates) (Record, error)
	block   chan struct{}
}

func (f *fakeClient) FetchByCoordinates(ctx context.Context, coords Coordinates) (Record, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.block != nil {
		<-f.block
	}
	return f.respond(coords)
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeStore is an in-memory Store assigning monotonically increasing
// timestamps at write time, like the real one.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]Record
	loadErr error
	saveErr error
	clock   int64
}

func newFakeStore(records ...Record) *fakeStore {
	s := &fakeStore{records: make(map[string]Record)}
	for _, rec := range records {
		s.clock++
		rec.LastUpdated = s.clock
		s.records[rec.CityName] = rec
	}
	return s
}

func (f *fakeStore) Upsert(ctx context.Context, rec Record) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.saveErr != nil {
		return rec, f.saveErr
	}
	f.clock++
	rec.LastUpdated = f.clock
	f.records[rec.CityName] = rec
	return rec, nil
}

func (f *fakeStore) LoadAll(ctx context.Context) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.loadErr != nil {
		return nil, f.loadErr
	}
	records := make([]Record, 0, len(f.records))
	for _, rec := range f.records {
		records = append(records, rec)
	}
	return records, nil
}

func (f *fakeStore) get(name string) (Record, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[name]
	return rec, ok
}

type fakeLocator struct {
	enabled bool
	coords  Coordinates
	err     error
}

func (f *fakeLocator) Enabled() bool { return f.enabled }

func (f *fakeLocator) CurrentCoordinates(ctx context.Context) (Coordinates, error) {
	if f.err != nil {
		return Coordinates{}, f.err
	}
	return f.coords, nil
}

type fakeChecker bool

func (f fakeChecker) IsOnline() bool { return bool(f) }

var (
	londonCoords  = Coordinates{Lat: 51.5074, Lon: -0.1278}
	parisCoords   = Coordinates{Lat: 48.8566, Lon: 2.3522}
	currentCoords = Coordinates{Lat: 59.9139, Lon: 10.7522}
)

func respondByCoords(responses map[Coordinates]Record, failures map[Coordinates]error) func(Coordinates) (Record, error) {
	return func(coords Coordinates) (Record, error) {
		if err, ok := failures[coords]; ok {
			return Record{}, err
		}
		if rec, ok := responses[coords]; ok {
			return rec, nil
		}
		return Record{}, NewFetchError("no canned response for %v", coords)
	}
}

func TestOfflineServesCacheWithError(t *testing.T) {
	cached := []Record{
		{CityName: "London", TemperatureC: 10, Country: "GB"},
		{CityName: "Paris", TemperatureC: 7, Country: "FR"},
	}
	store := newFakeStore(cached...)
	client := &fakeClient{respond: respondByCoords(nil, nil)}

	coord := NewCoordinator(client, store, &fakeLocator{enabled: true, coords: currentCoords}, fakeChecker(false), nil, time.Second)

	if !coord.Activate(context.Background()) {
		t.Fatal("Activate returned false")
	}

	view := coord.Snapshot()
	if view.Loading {
		t.Error("view still loading after Activate")
	}
	if view.Error != "No internet connection" {
		t.Errorf("expected offline error, got %q", view.Error)
	}
	if len(view.ByCity) != 2 {
		t.Fatalf("expected 2 cached entries, got %d", len(view.ByCity))
	}
	if view.ByCity["London"].TemperatureC != 10 {
		t.Errorf("cached London entry changed: %+v", view.ByCity["London"])
	}
	if client.callCount() != 0 {
		t.Errorf("expected no fetches while offline, got %d", client.callCount())
	}
}

func TestLocationDisabledSkipsFetchesEntirely(t *testing.T) {
	store := newFakeStore(Record{CityName: "London", TemperatureC: 10})
	client := &fakeClient{respond: respondByCoords(nil, nil)}

	cities := []City{{Name: "London", Coords: londonCoords}}
	coord := NewCoordinator(client, store, &fakeLocator{enabled: false}, fakeChecker(true), cities, time.Second)

	coord.Activate(context.Background())

	view := coord.Snapshot()
	if client.callCount() != 0 {
		t.Errorf("expected no fetches without location permission, got %d", client.callCount())
	}
	if view.Error != "" {
		t.Errorf("expected no error in cache-only state, got %q", view.Error)
	}
	if view.Loading {
		t.Error("view still loading")
	}
	if len(view.ByCity) != 1 {
		t.Errorf("expected cached view, got %+v", view.ByCity)
	}
}

func TestLocationFailureKeepsCache(t *testing.T) {
	store := newFakeStore(Record{CityName: "London", TemperatureC: 10})
	client := &fakeClient{respond: respondByCoords(nil, nil)}

	locator := &fakeLocator{enabled: true, err: ErrLocationUnavailable}
	coord := NewCoordinator(client, store, locator, fakeChecker(true), nil, time.Second)

	coord.Activate(context.Background())

	view := coord.Snapshot()
	if view.Error != "Unable to get location" {
		t.Errorf("expected location error, got %q", view.Error)
	}
	if len(view.ByCity) != 1 {
		t.Errorf("cache lost on location failure: %+v", view.ByCity)
	}
	if client.callCount() != 0 {
		t.Errorf("expected no fetches without a fix, got %d", client.callCount())
	}
}

func TestPartialFailureMergesAdditively(t *testing.T) {
	oldLondon := Record{CityName: "London", TemperatureC: 10}
	oldParis := Record{CityName: "Paris", TemperatureC: 7}
	store := newFakeStore(oldLondon, oldParis)

	cachedParis, _ := store.get("Paris")

	client := &fakeClient{respond: respondByCoords(
		map[Coordinates]Record{
			londonCoords:  {CityName: "London", TemperatureC: 12, Country: "GB"},
			currentCoords: {CityName: "Oslo", TemperatureC: 3, Country: "NO"},
		},
		map[Coordinates]error{
			parisCoords: NewFetchError("upstream timeout"),
		},
	)}

	cities := []City{
		{Name: "London", Coords: londonCoords},
		{Name: "Paris", Coords: parisCoords},
	}
	coord := NewCoordinator(client, store, &fakeLocator{enabled: true, coords: currentCoords}, fakeChecker(true), cities, time.Second)

	coord.Activate(context.Background())

	view := coord.Snapshot()
	if view.ByCity["London"].TemperatureC != 12 {
		t.Errorf("London not refreshed: %+v", view.ByCity["London"])
	}
	if !reflect.DeepEqual(view.ByCity["Paris"], cachedParis) {
		t.Errorf("failed fetch must leave cached Paris untouched: got %+v, want %+v", view.ByCity["Paris"], cachedParis)
	}
	if view.Current == nil || view.Current.CityName != "Oslo" {
		t.Errorf("current location record missing: %+v", view.Current)
	}
	if view.Error != "" {
		t.Errorf("per-city failure must not surface as view error, got %q", view.Error)
	}
	if _, ok := store.get("Oslo"); !ok {
		t.Error("current location record was not persisted")
	}
}

func TestResponseNameIsAuthoritativeKey(t *testing.T) {
	delhiCoords := Coordinates{Lat: 28.704060, Lon: 77.102493}
	store := newFakeStore()

	client := &fakeClient{respond: respondByCoords(
		map[Coordinates]Record{
			delhiCoords:   {CityName: "New Delhi", TemperatureC: 31, Country: "IN"},
			currentCoords: {CityName: "Oslo", TemperatureC: 3},
		}, nil,
	)}

	cities := []City{{Name: "Delhi", Coords: delhiCoords}}
	coord := NewCoordinator(client, store, &fakeLocator{enabled: true, coords: currentCoords}, fakeChecker(true), cities, time.Second)

	coord.Activate(context.Background())

	view := coord.Snapshot()
	if _, ok := view.ByCity["Delhi"]; ok {
		t.Error("view keyed by configured label instead of reported name")
	}
	if rec, ok := view.ByCity["New Delhi"]; !ok || rec.TemperatureC != 31 {
		t.Errorf("expected entry keyed by reported name, got %+v", view.ByCity)
	}
	if _, ok := store.get("New Delhi"); !ok {
		t.Error("store keyed by configured label instead of reported name")
	}
}

func TestCurrentLocationFailureSetsErrorOnly(t *testing.T) {
	store := newFakeStore(Record{CityName: "London", TemperatureC: 10})

	client := &fakeClient{respond: respondByCoords(
		map[Coordinates]Record{
			londonCoords: {CityName: "London", TemperatureC: 12},
		},
		map[Coordinates]error{
			currentCoords: NewFetchError("boom"),
		},
	)}

	cities := []City{{Name: "London", Coords: londonCoords}}
	coord := NewCoordinator(client, store, &fakeLocator{enabled: true, coords: currentCoords}, fakeChecker(true), cities, time.Second)

	coord.Activate(context.Background())

	view := coord.Snapshot()
	if view.Current != nil {
		t.Errorf("current must stay absent on failure, got %+v", view.Current)
	}
	if view.Error != "boom" {
		t.Errorf("expected failure reason as error, got %q", view.Error)
	}
	if view.ByCity["London"].TemperatureC != 12 {
		t.Errorf("city refresh must still apply: %+v", view.ByCity["London"])
	}
}

func TestStoreWriteFailureKeepsMergedView(t *testing.T) {
	store := newFakeStore()
	store.saveErr = errors.New("disk full")

	client := &fakeClient{respond: respondByCoords(
		map[Coordinates]Record{
			currentCoords: {CityName: "Oslo", TemperatureC: 3},
		}, nil,
	)}

	coord := NewCoordinator(client, store, &fakeLocator{enabled: true, coords: currentCoords}, fakeChecker(true), nil, time.Second)

	coord.Activate(context.Background())

	view := coord.Snapshot()
	if _, ok := view.ByCity["Oslo"]; !ok {
		t.Error("fetched record must be shown even when persisting failed")
	}
	if view.Error == "" {
		t.Error("storage failure should surface as a non-fatal error string")
	}
	if view.Loading {
		t.Error("view stuck loading after storage failure")
	}
}

func TestStoreReadFailureTreatedAsEmptyCache(t *testing.T) {
	store := newFakeStore()
	store.loadErr = errors.New("cannot open database")

	client := &fakeClient{respond: respondByCoords(nil, nil)}
	coord := NewCoordinator(client, store, &fakeLocator{enabled: true, coords: currentCoords}, fakeChecker(false), nil, time.Second)

	if !coord.Activate(context.Background()) {
		t.Fatal("Activate returned false")
	}

	view := coord.Snapshot()
	if len(view.ByCity) != 0 {
		t.Errorf("expected empty view on read failure, got %+v", view.ByCity)
	}
	if view.Loading {
		t.Error("view stuck loading after read failure")
	}
}

func TestSecondActivateRejectedWhileInFlight(t *testing.T) {
	store := newFakeStore()
	release := make(chan struct{})
	client := &fakeClient{
		block: release,
		respond: respondByCoords(
			map[Coordinates]Record{
				currentCoords: {CityName: "Oslo", TemperatureC: 3},
			}, nil,
		),
	}

	coord := NewCoordinator(client, store, &fakeLocator{enabled: true, coords: currentCoords}, fakeChecker(true), nil, time.Second)

	done := make(chan bool, 1)
	go func() {
		done <- coord.Activate(context.Background())
	}()

	// Wait until the first cycle is inside a fetch.
	deadline := time.After(2 * time.Second)
	for client.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("first refresh never reached the client")
		case <-time.After(time.Millisecond):
		}
	}

	if coord.Activate(context.Background()) {
		t.Error("second Activate must be rejected while one is in flight")
	}

	close(release)
	if !<-done {
		t.Error("first Activate should have run")
	}

	// With the first cycle settled a new refresh is allowed again.
	if !coord.Activate(context.Background()) {
		t.Error("Activate rejected after previous cycle settled")
	}
}

func TestClientPanicBecomesFetchError(t *testing.T) {
	store := newFakeStore(Record{CityName: "London", TemperatureC: 10})

	client := &fakeClient{respond: func(coords Coordinates) (Record, error) {
		panic("unexpected payload shape")
	}}

	coord := NewCoordinator(client, store, &fakeLocator{enabled: true, coords: currentCoords}, fakeChecker(true), nil, time.Second)

	coord.Activate(context.Background())

	view := coord.Snapshot()
	if view.Loading {
		t.Error("panic left the view loading")
	}
	if view.Error == "" {
		t.Error("panic in current-location fetch should surface as error text")
	}
	if len(view.ByCity) != 1 {
		t.Errorf("cache lost after panic: %+v", view.ByCity)
	}
}

func TestSnapshotIsIsolatedCopy(t *testing.T) {
	store := newFakeStore(Record{CityName: "London", TemperatureC: 10})
	client := &fakeClient{respond: respondByCoords(nil, nil)}

	coord := NewCoordinator(client, store, &fakeLocator{enabled: false}, fakeChecker(false), nil, time.Second)
	coord.Activate(context.Background())

	snap := coord.Snapshot()
	snap.ByCity["London"] = Record{CityName: "London", TemperatureC: 99}

	if coord.Snapshot().ByCity["London"].TemperatureC == 99 {
		t.Error("mutating a snapshot leaked into the coordinator's view")
	}
}

func TestViewLoadingBeforeFirstActivate(t *testing.T) {
	store := newFakeStore()
	client := &fakeClient{respond: respondByCoords(nil, nil)}

	coord := NewCoordinator(client, store, &fakeLocator{enabled: false}, fakeChecker(false), nil, time.Second)

	if !coord.Snapshot().Loading {
		t.Error("initial view should report loading until first activation")
	}
}
