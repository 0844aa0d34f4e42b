package translator

import (
	"context"
	"sync"
)

// Audience is one recipient of a broadcast message.
type Audience struct {
	ActorID ActorID
	Locale  string
}

// TranslateForActors translates one message for many recipients. Detection
// runs once, each recipient passes through the same gates as Translate, and
// recipients sharing a target language share a single chain call. Chains for
// different languages run concurrently.
func (m *Manager) TranslateForActors(ctx context.Context, text string, audience []Audience) map[ActorID]Outcome {
	results := make(map[ActorID]Outcome, len(audience))
	if len(audience) == 0 {
		return results
	}

	source := m.detector.Detect(text)

	type group struct {
		route  *route
		key    string
		actors []ActorID
	}
	groups := make(map[string]*group)

	for _, a := range audience {
		r, skip := m.resolve(text, AutoDetect, a.Locale, &source)
		if skip != nil {
			results[a.ActorID] = skip
			continue
		}

		release, ok := m.admit(a.ActorID)
		if !ok {
			results[a.ActorID] = &RateLimited{}
			continue
		}

		key := CacheKey(r.wire.Code, r.target.Code, text)
		if m.cache != nil {
			if cached, ok := m.cache.Get(key); ok {
				release()
				results[a.ActorID] = &Success{
					Text:     cached,
					Original: text,
					Source:   r.source,
					Target:   r.target,
					Cached:   true,
				}
				continue
			}
		}

		g, ok := groups[r.target.Code]
		if !ok {
			g = &group{route: r, key: key}
			groups[r.target.Code] = g
		}
		g.actors = append(g.actors, a.ActorID)
	}

	if len(groups) == 0 {
		return results
	}

	type groupResult struct {
		actors  []ActorID
		outcome Outcome
	}

	out := make(chan groupResult, len(groups))
	var wg sync.WaitGroup

	for _, g := range groups {
		wg.Add(1)
		go func(g *group) {
			defer wg.Done()
			out <- groupResult{actors: g.actors, outcome: m.translate(ctx, text, g.route, g.key)}
		}(g)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	for res := range out {
		for _, id := range res.actors {
			results[id] = cloneOutcome(res.outcome)
		}
	}

	return results
}

// cloneOutcome gives each recipient its own value, so one actor's outcome
// can be edited without touching the rest of its language group.
func cloneOutcome(o Outcome) Outcome {
	switch v := o.(type) {
	case *Success:
		c := *v
		return &c
	case *Failed:
		c := *v
		return &c
	case *NoTranslationNeeded:
		c := *v
		return &c
	}
	return o
}
