// Package config loads memsched configuration.
//
// # Sources
//
// Load layers three sources, later ones winning:
//
//  1. Default(), the built-in values
//  2. a YAML file, with ${VAR_NAME} references expanded from the environment
//  3. environment variables named MEMSCHED_<SECTION>_<KEY>
//
// For example MEMSCHED_POOL_WORKERS=8 sets pool.workers and
// MEMSCHED_MEMORY_BACKOFF=true sets memory.backoff.
//
// # File format
//
//	memory:
//	  initial_slots: 64
//	  max_slots: 0
//	  backoff: false
//	  cache_max_size: 4096
//	pool:
//	  name: memsched
//	  workers: 0
//	stress:
//	  producers: 4
//	  consumers: 4
//	  items: 100000
//	logging:
//	  level: info
//	  encoding: console
//
// Save writes a Config back in the same format; `memsched config init`
// uses it to produce a starting file.
package config
