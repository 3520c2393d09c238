package metainfo

import "errors"

var (
	ErrMissingInfo        = errors.New("metainfo: missing info dictionary")
	ErrNotDict            = errors.New("metainfo: top-level value is not a dictionary")
	ErrAmbiguousMode      = errors.New("metainfo: info has both length and files")
	ErrNoMode             = errors.New("metainfo: info has neither length nor files")
	ErrInvalidPieceLength = errors.New("metainfo: piece length must be positive")
	ErrNoPieces           = errors.New("metainfo: pieces is empty")
	ErrPiecesLength       = errors.New("metainfo: pieces length is not a multiple of 20")
	ErrInvalidFile        = errors.New("metainfo: invalid file entry")
	ErrInvalidInfoHash    = errors.New("metainfo: invalid info hash")
)
