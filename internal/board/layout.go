package board

// Deterministic position layout.
//
// A lead's coordinate is fully reproducible from its ID, its lane, and the
// container size: no randomness, no server-assigned coordinates, no layout
// state carried between renders. Two renders of the same lead under the same
// lane and container can never disagree, so dots don't jump between frames.

// Hash is the layout hash: a polynomial string hash with multiplier 31 over
// the raw bytes, started from a fixed seed. The seed salts the hash so
// independent purposes (lane selection vs in-lane jitter) draw from
// uncorrelated distributions for the same ID.
//
// The algorithm is part of the layout contract - "same id, same coordinate"
// must hold across reimplementations - so keep it exactly: h = seed, then
// h = h*31 + byte for every byte of s.
func Hash(s string, seed uint32) uint32 {
	h := seed
	for i := 0; i < len(s); i++ {
		h = h*31 + uint32(s[i])
	}
	return h
}

// Layout hash seeds. Two independent seeds: one picks the lane in default
// mode, the other drives in-band jitter. Using the same hash for both would
// align dots on visible diagonals.
const (
	laneSeed   uint32 = 0x9747b28c
	jitterSeed uint32 = 0x85ebca6b
)

// Band geometry: each lane band keeps a 20% top margin and spreads dots over
// the following 60% of the band height.
const (
	bandTopMargin   = 0.20
	bandJitterSpan  = 0.60
	jitterGrainSize = 1024 // discrete jitter positions inside a band
)

// Point is a 2-D board coordinate in the container's pixel space.
type Point struct {
	X float64
	Y float64
}

// Position computes the board coordinate for a lead.
//
// X centers the lead horizontally within its current-step column. Y places it
// inside its lane band: band start, plus the fixed top margin, plus a
// deterministic jitter offset derived from the second, independently-seeded
// hash of the lead ID.
//
// Degenerate inputs yield defined results rather than propagating invalid
// numbers into the render surface: a non-positive lane count is treated as a
// single lane, and a container with a non-positive dimension maps everything
// to the origin.
func Position(leadID string, laneIndex, laneCount, columnIndex int, columnWidth, containerHeight float64) Point {
	if columnWidth <= 0 || containerHeight <= 0 {
		return Point{}
	}

	if laneCount < 1 {
		laneCount = 1
	}
	if laneIndex < 0 {
		laneIndex = 0
	}
	if laneIndex >= laneCount {
		laneIndex = laneCount - 1
	}
	if columnIndex < 0 {
		columnIndex = 0
	}

	x := float64(columnIndex)*columnWidth + columnWidth/2

	band := containerHeight / float64(laneCount)
	grain := Hash(leadID, jitterSeed) % jitterGrainSize
	jitter := float64(grain) / float64(jitterGrainSize)
	y := float64(laneIndex)*band + bandTopMargin*band + jitter*bandJitterSpan*band

	return Point{X: x, Y: y}
}
