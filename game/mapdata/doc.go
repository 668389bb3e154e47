// Package mapdata loads, validates and caches board definitions. The
// classic map ships embedded in the binary; extra maps are read from an
// optional directory. Validation guarantees the tile graph is closed:
// every successor exists, every tile is reachable from start, and every
// tile can reach a retire tile.
package mapdata
