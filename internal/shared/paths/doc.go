// Package paths provides the on-disk layout of the region cache.
//
// # Directory Structure
//
//	<cache dir>/
//	  ├── regions/   (one snapshot per region, named from its state key)
//	  └── ...
//
// # Usage
//
//	file := paths.RegionFile(cfg.Cache.Dir, "inventory:user1", paths.ExtJSON)
//	// <dir>/regions/inventory_user1.json
package paths
