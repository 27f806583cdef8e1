// Package inventory implements the region holding every vatom the signed-in
// user owns.
//
// A sync takes the cheapest path that is still correct:
//
//  1. Fetch the inventory hash. Without a stored hash (cold start) fetch
//     everything page by page.
//  2. If the hash is unchanged, skip object fetches entirely.
//  3. If it changed, fetch the id/sync-number index, remove what the server
//     no longer lists and fetch only new or changed vatoms, in batches.
//  4. If any step of the hash/index path fails, fall back to fetching
//     everything page by page, widening the number of concurrent pages each
//     round until a page comes back empty or the page ceiling is reached.
//  5. Finally fetch face and action changes for the held templates since the
//     last metadata sync and refresh every vatom of a touched template.
//
// Push messages that change membership or content clear the stored hash so
// the next sync does not trust it. The hash and the metadata watermark are
// persisted next to the region's snapshot.
package inventory
