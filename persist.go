package flann

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

// Persistence format (spec §6): a fixed-size header written with
// encoding/binary, exactly the header/body split the teacher's originating
// C++ source uses in saving.h/saving.cpp, followed by an algorithm-specific
// node stream msgpack-encodes as its body (the same "versioned struct over
// a byte boundary" shape as haivivi-giztoy/go's segment persistence). The
// dataset itself is never written to the file: load_index takes the
// dataset from the caller (spec §6 "load_index(path, dataset) ->
// index_handle"), so the body carries only the derived tree structure.
const (
	magicString        = "FLANNIDX"
	formatVersionMajor = 1
	formatVersionMinor = 0
	elementTypeFloat64 = 1

	algoTagLinear    = 0
	algoTagKDTree    = 1
	algoTagKMeans    = 2
	algoTagComposite = 3
)

type indexHeader struct {
	Magic        [8]byte
	VersionMajor uint16
	VersionMinor uint16
	ElementType  uint8
	Algorithm    uint8
	Rows         uint64
	Cols         uint64
}

// SaveIndex writes idx to path (spec §6 save_index). The header records the
// dataset shape the index was built over so LoadIndex can check the
// caller-supplied dataset still matches before trusting the body against it.
func SaveIndex(idx Index, path string) error {
	var body []byte
	var algoTag uint8
	var err error

	switch v := idx.(type) {
	case *linearIndex:
		algoTag = algoTagLinear
		body, err = v.marshal()
	case *kdForestIndex:
		algoTag = algoTagKDTree
		body, err = v.marshal()
	case *kmeansTreeIndex:
		algoTag = algoTagKMeans
		body, err = v.marshal()
	case *compositeIndex:
		algoTag = algoTagComposite
		body, err = v.marshal()
	default:
		return notSupportedf("SaveIndex", "unsupported index type %T", idx)
	}
	if err != nil {
		return ioFailuref("SaveIndex", "encode body: %v", err)
	}

	ds := datasetOf(idx)
	if ds == nil {
		return notSupportedf("SaveIndex", "unsupported index type %T", idx)
	}
	hdr := indexHeader{
		VersionMajor: formatVersionMajor,
		VersionMinor: formatVersionMinor,
		ElementType:  elementTypeFloat64,
		Algorithm:    algoTag,
		Rows:         uint64(ds.Rows()),
		Cols:         uint64(ds.Cols()),
	}
	copy(hdr.Magic[:], magicString)

	f, err := os.Create(path)
	if err != nil {
		return ioFailuref("SaveIndex", "create %s: %v", path, err)
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, hdr); err != nil {
		return ioFailuref("SaveIndex", "write header: %v", err)
	}
	if _, err := f.Write(body); err != nil {
		return ioFailuref("SaveIndex", "write body: %v", err)
	}
	return nil
}

// LoadIndex reads an index previously written by SaveIndex, reconstituting
// it over the caller-supplied dataset (spec §6 load_index). It rejects a
// mismatched magic, element type, or dataset shape outright; a minor
// version mismatch is tolerated (spec §6 "Back-compat").
func LoadIndex(path string, dataset *Dataset) (Index, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, ioFailuref("LoadIndex", "read %s: %v", path, err)
	}
	if len(raw) < headerSize() {
		return nil, ioFailuref("LoadIndex", "truncated file: %d bytes", len(raw))
	}
	var hdr indexHeader
	if err := binary.Read(bytes.NewReader(raw[:headerSize()]), binary.LittleEndian, &hdr); err != nil {
		return nil, ioFailuref("LoadIndex", "read header: %v", err)
	}
	if string(hdr.Magic[:]) != magicString {
		return nil, ioFailuref("LoadIndex", "bad magic %q", hdr.Magic)
	}
	if hdr.ElementType != elementTypeFloat64 {
		return nil, ioFailuref("LoadIndex", "unsupported element type %d", hdr.ElementType)
	}
	if hdr.VersionMajor != formatVersionMajor {
		return nil, ioFailuref("LoadIndex", "incompatible major version %d", hdr.VersionMajor)
	}
	// A minor-version mismatch is a warning-only condition (spec §6); there
	// is no injected logger to report it to (see AMBIENT STACK), so it is
	// silently tolerated.
	if uint64(dataset.Rows()) != hdr.Rows || uint64(dataset.Cols()) != hdr.Cols {
		return nil, dimensionMismatchf("LoadIndex", "dataset is %dx%d, index was saved over %dx%d", dataset.Rows(), dataset.Cols(), hdr.Rows, hdr.Cols)
	}

	body := raw[headerSize():]
	switch hdr.Algorithm {
	case algoTagLinear:
		return unmarshalLinear(body, dataset)
	case algoTagKDTree:
		return unmarshalKDForest(body, dataset)
	case algoTagKMeans:
		return unmarshalKMeansTree(body, dataset)
	case algoTagComposite:
		return unmarshalComposite(body, dataset)
	default:
		return nil, ioFailuref("LoadIndex", "unrecognized algorithm tag %d", hdr.Algorithm)
	}
}

func headerSize() int {
	return binary.Size(indexHeader{})
}

func datasetOf(idx Index) *Dataset {
	switch v := idx.(type) {
	case *linearIndex:
		return v.base.dataset
	case *kdForestIndex:
		return v.base.dataset
	case *kmeansTreeIndex:
		return v.base.dataset
	case *compositeIndex:
		return v.base.dataset
	default:
		return nil
	}
}

// distanceTag/distanceFromTag round-trip a Distance functor through its
// name (and, for Minkowski, its order), since Distance values themselves
// carry no exported state msgpack could serialize meaningfully on their
// own behalf.
func distanceTag(d Distance) (tag string, order float64, err error) {
	switch v := d.(type) {
	case SquaredL2Distance:
		return "sql2", 0, nil
	case L1Distance:
		return "l1", 0, nil
	case MinkowskiDistance:
		return "minkowski", v.Order, nil
	case LInfDistance:
		return "linf", 0, nil
	case HistIntersectionDistance:
		return "histintersection", 0, nil
	case HellingerDistance:
		return "hellinger", 0, nil
	case ChiSquareDistance:
		return "chisquare", 0, nil
	case KLDivergenceDistance:
		return "kldivergence", 0, nil
	case HammingDistance:
		return "hamming", 0, nil
	default:
		return "", 0, notSupportedf("SaveIndex", "distance type %T has no persistence tag", d)
	}
}

func distanceFromTag(tag string, order float64) (Distance, error) {
	switch tag {
	case "sql2":
		return SquaredL2Distance{}, nil
	case "l1":
		return L1Distance{}, nil
	case "minkowski":
		return MinkowskiDistance{Order: order}, nil
	case "linf":
		return LInfDistance{}, nil
	case "histintersection":
		return HistIntersectionDistance{}, nil
	case "hellinger":
		return HellingerDistance{}, nil
	case "chisquare":
		return ChiSquareDistance{}, nil
	case "kldivergence":
		return KLDivergenceDistance{}, nil
	case "hamming":
		return HammingDistance{}, nil
	default:
		return nil, ioFailuref("LoadIndex", "unrecognized distance tag %q", tag)
	}
}

// restoredBase rebuilds a baseIndex over a caller-supplied dataset, with
// tombstones/bookkeeping taken from the persisted body.
func restoredBase(dataset *Dataset, tombstoneWords []uint64, originalSize, removed int, dist Distance) baseIndex {
	words := append([]uint64(nil), tombstoneWords...)
	return baseIndex{
		dataset:      dataset,
		distance:     dist,
		tombstones:   &denseBitset{words: words, n: dataset.Rows()},
		originalSize: originalSize,
		removed:      removed,
		stats:        NewOperationalStats(),
	}
}

// --- linear ---

type linearWire struct {
	Tombstones     []uint64
	OriginalSize   int
	Removed        int
	DistanceTag    string
	MinkowskiOrder float64
}

func (l *linearIndex) marshal() ([]byte, error) {
	tag, order, err := distanceTag(l.base.distance)
	if err != nil {
		return nil, err
	}
	w := linearWire{
		Tombstones:     append([]uint64(nil), l.base.tombstones.words...),
		OriginalSize:   l.base.originalSize,
		Removed:        l.base.removed,
		DistanceTag:    tag,
		MinkowskiOrder: order,
	}
	return msgpack.Marshal(w)
}

func unmarshalLinear(body []byte, dataset *Dataset) (*linearIndex, error) {
	var w linearWire
	if err := msgpack.Unmarshal(body, &w); err != nil {
		return nil, ioFailuref("LoadIndex", "decode linear body: %v", err)
	}
	dist, err := distanceFromTag(w.DistanceTag, w.MinkowskiOrder)
	if err != nil {
		return nil, err
	}
	return &linearIndex{base: restoredBase(dataset, w.Tombstones, w.OriginalSize, w.Removed, dist)}, nil
}

// --- k-d forest ---

type kdNodeWire struct {
	Leaf    bool
	PointID int
	CutDim  int
	CutVal  float64
}

type kdForestWire struct {
	Tombstones     []uint64
	OriginalSize   int
	Removed        int
	DistanceTag    string
	MinkowskiOrder float64
	Trees          int
	Seed           int64
	Nodes          []kdNodeWire // concatenated pre-order streams, one per tree
}

func serializeKDNode(n *kdNode, out *[]kdNodeWire) {
	*out = append(*out, kdNodeWire{Leaf: n.leaf, PointID: n.pointID, CutDim: n.cutDim, CutVal: n.cutVal})
	if !n.leaf {
		serializeKDNode(n.left, out)
		serializeKDNode(n.right, out)
	}
}

// deserializeKDNode consumes one node (and, recursively, its whole
// subtree) starting at pos, returning the node and the position just past
// its subtree. Every internal node this package builds has exactly two
// children, so no explicit child-count marker is needed in the stream.
func deserializeKDNode(wire []kdNodeWire, pos int, k *kdForestIndex) (*kdNode, int) {
	wn := wire[pos]
	node := &k.nodes.allocate(1)[0]
	node.leaf = wn.Leaf
	if wn.Leaf {
		node.pointID = wn.PointID
		return node, pos + 1
	}
	node.cutDim, node.cutVal = wn.CutDim, wn.CutVal
	left, next := deserializeKDNode(wire, pos+1, k)
	right, next2 := deserializeKDNode(wire, next, k)
	node.left, node.right = left, right
	return node, next2
}

func (k *kdForestIndex) marshal() ([]byte, error) {
	tag, order, err := distanceTag(k.base.distance)
	if err != nil {
		return nil, err
	}
	var nodes []kdNodeWire
	for _, root := range k.roots {
		serializeKDNode(root, &nodes)
	}
	w := kdForestWire{
		Tombstones:     append([]uint64(nil), k.base.tombstones.words...),
		OriginalSize:   k.base.originalSize,
		Removed:        k.base.removed,
		DistanceTag:    tag,
		MinkowskiOrder: order,
		Trees:          k.trees,
		Seed:           k.seed,
		Nodes:          nodes,
	}
	return msgpack.Marshal(w)
}

func unmarshalKDForest(body []byte, dataset *Dataset) (*kdForestIndex, error) {
	var w kdForestWire
	if err := msgpack.Unmarshal(body, &w); err != nil {
		return nil, ioFailuref("LoadIndex", "decode kdtree body: %v", err)
	}
	dist, err := distanceFromTag(w.DistanceTag, w.MinkowskiOrder)
	if err != nil {
		return nil, err
	}
	k := &kdForestIndex{
		base:  restoredBase(dataset, w.Tombstones, w.OriginalSize, w.Removed, dist),
		nodes: newArena[kdNode](defaultArenaBlockSize),
		trees: w.Trees,
		seed:  w.Seed,
	}
	pos := 0
	for t := 0; t < w.Trees; t++ {
		if pos >= len(w.Nodes) {
			return nil, ioFailuref("LoadIndex", "kdtree node stream truncated at tree %d", t)
		}
		var root *kdNode
		root, pos = deserializeKDNode(w.Nodes, pos, k)
		k.roots = append(k.roots, root)
	}
	return k, nil
}

// --- k-means tree ---

type kmeansNodeWire struct {
	Leaf        bool
	IDs         []int
	Pivot       []float64
	Variance    float64
	Radius      float64
	Size        int
	NumChildren int
}

type kmeansWire struct {
	Tombstones     []uint64
	OriginalSize   int
	Removed        int
	DistanceTag    string
	MinkowskiOrder float64
	Branching      int
	MaxIter        int
	CentersInit    string
	CBIndex        float64
	Seed           int64
	HasRoot        bool
	Nodes          []kmeansNodeWire
}

func serializeKMeansNode(n *kmeansNode, out *[]kmeansNodeWire) {
	wn := kmeansNodeWire{
		Leaf:        n.leaf,
		Pivot:       append([]float64(nil), n.pivot...),
		Variance:    n.variance,
		Radius:      n.radius,
		Size:        n.size,
		NumChildren: len(n.children),
	}
	if n.leaf {
		wn.IDs = append([]int(nil), n.ids...)
	}
	*out = append(*out, wn)
	for _, c := range n.children {
		serializeKMeansNode(c, out)
	}
}

func deserializeKMeansNode(wire []kmeansNodeWire, pos int, t *kmeansTreeIndex) (*kmeansNode, int, error) {
	if pos >= len(wire) {
		return nil, pos, ioFailuref("LoadIndex", "k-means node stream truncated")
	}
	wn := wire[pos]
	n := &t.nodes.allocate(1)[0]
	n.leaf, n.pivot, n.variance, n.radius, n.size = wn.Leaf, wn.Pivot, wn.Variance, wn.Radius, wn.Size
	pos++
	if wn.Leaf {
		n.ids = wn.IDs
		return n, pos, nil
	}
	children := make([]*kmeansNode, 0, wn.NumChildren)
	for i := 0; i < wn.NumChildren; i++ {
		var c *kmeansNode
		var err error
		c, pos, err = deserializeKMeansNode(wire, pos, t)
		if err != nil {
			return nil, pos, err
		}
		children = append(children, c)
	}
	n.children = children
	return n, pos, nil
}

func (t *kmeansTreeIndex) marshal() ([]byte, error) {
	tag, order, err := distanceTag(t.base.distance)
	if err != nil {
		return nil, err
	}
	var nodes []kmeansNodeWire
	if t.root != nil {
		serializeKMeansNode(t.root, &nodes)
	}
	w := kmeansWire{
		Tombstones:     append([]uint64(nil), t.base.tombstones.words...),
		OriginalSize:   t.base.originalSize,
		Removed:        t.base.removed,
		DistanceTag:    tag,
		MinkowskiOrder: order,
		Branching:      t.branching,
		MaxIter:        t.maxIter,
		CentersInit:    string(t.centersInit),
		CBIndex:        t.cbIndex,
		Seed:           t.seed,
		HasRoot:        t.root != nil,
		Nodes:          nodes,
	}
	return msgpack.Marshal(w)
}

func unmarshalKMeansTree(body []byte, dataset *Dataset) (*kmeansTreeIndex, error) {
	var w kmeansWire
	if err := msgpack.Unmarshal(body, &w); err != nil {
		return nil, ioFailuref("LoadIndex", "decode kmeans body: %v", err)
	}
	dist, err := distanceFromTag(w.DistanceTag, w.MinkowskiOrder)
	if err != nil {
		return nil, err
	}
	t := &kmeansTreeIndex{
		base:        restoredBase(dataset, w.Tombstones, w.OriginalSize, w.Removed, dist),
		nodes:       newArena[kmeansNode](defaultArenaBlockSize),
		branching:   w.Branching,
		maxIter:     w.MaxIter,
		centersInit: CentersInit(w.CentersInit),
		cbIndex:     w.CBIndex,
		seed:        w.Seed,
	}
	if w.HasRoot {
		root, _, err := deserializeKMeansNode(w.Nodes, 0, t)
		if err != nil {
			return nil, err
		}
		t.root = root
	}
	return t, nil
}

// --- composite ---

type compositeWire struct {
	Forest []byte
	Tree   []byte
}

func (c *compositeIndex) marshal() ([]byte, error) {
	forestBody, err := c.forest.marshal()
	if err != nil {
		return nil, fmt.Errorf("forest: %w", err)
	}
	treeBody, err := c.tree.marshal()
	if err != nil {
		return nil, fmt.Errorf("tree: %w", err)
	}
	return msgpack.Marshal(compositeWire{Forest: forestBody, Tree: treeBody})
}

func unmarshalComposite(body []byte, dataset *Dataset) (*compositeIndex, error) {
	var w compositeWire
	if err := msgpack.Unmarshal(body, &w); err != nil {
		return nil, ioFailuref("LoadIndex", "decode composite body: %v", err)
	}
	forest, err := unmarshalKDForest(w.Forest, dataset)
	if err != nil {
		return nil, err
	}
	tree, err := unmarshalKMeansTree(w.Tree, dataset)
	if err != nil {
		return nil, err
	}
	return &compositeIndex{
		base:   restoredBase(dataset, forest.base.tombstones.words, forest.base.originalSize, forest.base.removed, forest.base.distance),
		forest: forest,
		tree:   tree,
	}, nil
}
