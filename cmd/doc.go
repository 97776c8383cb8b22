// Package cmd defines the catalog-crawler command line.
//
// Architecture overview:
//   - Discovery: the catalog page is fetched once through the Colly-based fetcher; product-card anchors are
//     resolved, filtered to http(s), de-duplicated and sorted (or kept in page order with --preserve-order).
//     Failing to read the catalog aborts the run with a non-zero exit.
//   - Detail fetch: every link is fetched concurrently behind the "detail" pool (detail.concurrency slots).
//     goquery extracts title, price, description and gallery URLs; ids are UUIDv5 over the canonical URL.
//     Failed or untitled pages are logged and dropped without affecting their siblings.
//   - Images: product folders are claimed in link order through a mutex-guarded registry, then every image of every
//     product is downloaded concurrently behind the independent "image" pool (images.concurrency slots). Files
//     already on disk are skipped without a request, so rerunning with --clean=false only fetches what is missing.
//   - Output: the titled products are written once, whole, as an indented JSON array (temp file + rename).
//
// Operational notes:
//   - Configuration: Viper merges defaults, an optional --config file, CATALOG_* environment variables (plus .env and
//     the legacy DOMAIN variable) and flags, in that order of precedence.
//   - Observability: zap logs carry the URL and failure kind of every dropped item; the final line is a structured
//     run report. Prometheus counters and pool gauges can be dumped with --metrics-textfile.
//   - SIGINT/SIGTERM cancel the run context; queued work fails fast and whatever completed is still written.
package cmd
