// Package crawl implements the discovery engine: the dedup-fronted fetch
// scheduler with its backpressure gate, the independent self-repeating
// discovery strategies (random probe, search-engine scrape, platform search,
// unknown-detail sweep), the response-shape extractor and the fuzzy token
// generator. All strategies share one State instance and coordinate through
// nothing else.
package crawl
