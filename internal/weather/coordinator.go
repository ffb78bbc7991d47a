package weather

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

const (
	msgNoInternet = "No internet connection"
	msgNoLocation = "Unable to get location"

	defaultFetchTimeout = 5 * time.Second
)

// Coordinator orchestrates the fetch-cache-merge pipeline: it loads
// cached records at startup, gates the network refresh on location
// permission and connectivity, fans out one fetch per configured city
// plus one for the current location, persists successes and folds
// everything into a single View. It is the sole writer of the View.
type Coordinator struct {
	client       Client
	store        Store
	locator      Locator
	connectivity ConnectivityChecker
	cities       []City
	fetchTimeout time.Duration

	mu       sync.RWMutex
	view     View
	inFlight bool
}

// NewCoordinator wires the coordinator with its collaborators. A
// non-positive fetchTimeout falls back to a few-second default so a
// slow upstream cannot hold a refresh open indefinitely.
func NewCoordinator(client Client, store Store, locator Locator, connectivity ConnectivityChecker, cities []City, fetchTimeout time.Duration) *Coordinator {
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	return &Coordinator{
		client:       client,
		store:        store,
		locator:      locator,
		connectivity: connectivity,
		cities:       cities,
		fetchTimeout: fetchTimeout,
		view:         View{ByCity: map[string]Record{}, Loading: true},
	}
}

// Snapshot returns a copy of the current View. Safe for concurrent use.
func (c *Coordinator) Snapshot() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view.clone()
}

// Activate runs one full refresh cycle and reports whether it ran.
// It returns false when another refresh is already in flight; cities
// are idempotent to overwrite, but two cycles racing on the same
// records would interleave unpredictably. It always settles the View
// into a displayable state, whatever fails along the way.
func (c *Coordinator) Activate(ctx context.Context) bool {
	if !c.begin() {
		log.Printf("INFO: refresh already in progress; skipping")
		return false
	}
	defer c.end()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: refresh panicked: %v", r)
			v := c.Snapshot()
			v.Loading = false
			v.Error = fmt.Sprintf("internal error: %v", r)
			c.publish(v)
		}
	}()

	// Cached data first, so the UI never blocks on network or location.
	view := View{ByCity: c.loadCache(ctx), Loading: false}
	c.publish(view)

	// Fresh refresh is opportunistic: without location permission we
	// settle on the cached view and attempt nothing.
	if !c.locator.Enabled() {
		log.Printf("INFO: location disabled; serving cached data only")
		return true
	}

	if !c.connectivity.IsOnline() {
		view.Error = msgNoInternet
		c.publish(view)
		return true
	}

	coords, err := c.locator.CurrentCoordinates(ctx)
	if err != nil {
		log.Printf("location fix failed: %v", err)
		view.Error = msgNoLocation
		c.publish(view)
		return true
	}

	c.publish(c.refresh(ctx, view.ByCity, coords))
	return true
}

// refresh fans out one fetch per fixed city plus one for the current
// coordinates, waits for all of them to settle, and folds the results
// into a new view. Merge is additive: successes overwrite by the city
// name the API reports, failures leave cached entries untouched.
func (c *Coordinator) refresh(ctx context.Context, cached map[string]Record, current Coordinates) View {
	type outcome struct {
		label   string
		current bool
		rec     Record
		err     error
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes []outcome
	)

	run := func(label string, coords Coordinates, isCurrent bool) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := c.fetchOne(ctx, coords)
			mu.Lock()
			outcomes = append(outcomes, outcome{label: label, current: isCurrent, rec: rec, err: err})
			mu.Unlock()
		}()
	}

	for _, city := range c.cities {
		run(city.Name, city.Coords, false)
	}
	run("current location", current, true)

	wg.Wait()

	merged := make(map[string]Record, len(cached)+len(outcomes))
	for name, rec := range cached {
		merged[name] = rec
	}

	var currentRec *Record
	var errText string

	for _, o := range outcomes {
		if o.err != nil {
			log.Printf("fetch failed for %s: %v", o.label, o.err)
			if o.current {
				errText = failureReason(o.err)
			}
			continue
		}

		stored, err := c.store.Upsert(ctx, o.rec)
		if err != nil {
			// Availability over durability: the fetched value is still
			// shown even when it could not be persisted.
			log.Printf("ERROR: persisting %s: %v", o.rec.CityName, err)
			if errText == "" {
				errText = fmt.Sprintf("failed to save %s", o.rec.CityName)
			}
			stored = o.rec
		}

		merged[stored.CityName] = stored
		if o.current {
			rec := stored
			currentRec = &rec
		}
	}

	return View{ByCity: merged, Current: currentRec, Loading: false, Error: errText}
}

// fetchOne bounds a single lookup with the per-fetch timeout and
// converts any panic from the client into a FetchError, so one bad
// fetch can never abort the batch or leave the view stuck loading.
func (c *Coordinator) fetchOne(ctx context.Context, coords Coordinates) (rec Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewFetchError("panic during fetch: %v", r)
		}
	}()

	fctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	return c.client.FetchByCoordinates(fctx, coords)
}

// loadCache reads all persisted records, treating a storage read
// failure as an empty cache.
func (c *Coordinator) loadCache(ctx context.Context) map[string]Record {
	records, err := c.store.LoadAll(ctx)
	if err != nil {
		log.Printf("ERROR: loading cached weather: %v; starting with empty cache", err)
	}

	byCity := make(map[string]Record, len(records))
	for _, rec := range records {
		byCity[rec.CityName] = rec
	}
	return byCity
}

func (c *Coordinator) publish(v View) {
	c.mu.Lock()
	c.view = v.clone()
	c.mu.Unlock()
}

func (c *Coordinator) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		return false
	}
	c.inFlight = true
	return true
}

func (c *Coordinator) end() {
	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()
}

// failureReason unwraps the human-readable reason from a fetch error.
func failureReason(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return err.Error()
}
