// Package metainfo owns the .torrent record schemas built on the bencode
// decoder.
//
// Ownership boundary:
// - MetaInfo and Info records with their wire names
// - info-hash computation over the exact encoded bytes of the info dict
// - structural validation of decoded torrents
package metainfo
