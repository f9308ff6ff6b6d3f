package usecase

import "github.com/pricelens/backend/internal/domain"

// BlockKey partitions the cross-source listing pool so that pairwise
// similarity work only ever runs within a block.
type BlockKey struct {
	Category    string
	Brand       string
	ProductType string
}

// Block is one candidate group of listings sharing a BlockKey
type Block struct {
	Key      BlockKey
	Listings []domain.NormalizedListing
}

// BuildBlocks partitions the deduplicated pool by
// (category, normalized brand, extracted type). Blocks are returned in
// first-seen order so runs are reproducible.
func BuildBlocks(listings []domain.NormalizedListing) []Block {
	index := make(map[BlockKey]int)
	var blocks []Block

	for _, l := range listings {
		key := BlockKey{
			Category:    l.NormalizedCategory,
			Brand:       l.NormalizedBrand,
			ProductType: l.ProductType,
		}
		i, seen := index[key]
		if !seen {
			i = len(blocks)
			index[key] = i
			blocks = append(blocks, Block{Key: key})
		}
		blocks[i].Listings = append(blocks[i].Listings, l)
	}

	return blocks
}
