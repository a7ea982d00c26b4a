package diagram

// Raw deflate producing the same bytes as zlib at its default level (6).
// Match finding follows zlib's deflate_slow; block and Huffman tree
// construction follow trees.c.

const (
	windowBits = 15
	windowSize = 1 << windowBits
	windowMask = windowSize - 1

	hashBits  = 15
	hashSize  = 1 << hashBits
	hashMask  = hashSize - 1
	hashShift = (hashBits + minMatch - 1) / minMatch

	minMatch     = 3
	maxMatch     = 258
	minLookahead = maxMatch + minMatch + 1
	maxDist      = windowSize - minLookahead
	tooFar       = 4096

	// Symbols buffered per block before it is flushed.
	symBufSize = 1 << 14

	goodLength  = 8
	maxLazy     = 16
	niceLength  = 128
	maxChain    = 128
	literals    = 256
	endBlock    = 256
	lengthCodes = 29
	lCodes      = literals + 1 + lengthCodes
	dCodes      = 30
	blCodes     = 19
	heapSize    = 2*lCodes + 1
	maxBits     = 15
	maxBLBits   = 7

	rep3to6     = 16
	repz3to10   = 17
	repz11to138 = 18
)

var (
	extraLBits  = [lengthCodes]int{0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0}
	extraDBits  = [dCodes]int{0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6, 7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13}
	extraBLBits = [blCodes]int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 3, 7}
	blOrder     = [blCodes]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}
)

// Static code tables, built once.
var (
	baseLength [lengthCodes]int
	lengthCode [256]int
	baseDist   [dCodes]int

	staticLLen  [lCodes + 2]int
	staticLCode []int
	staticDLen  [dCodes]int
	staticDCode [dCodes]int
)

func init() {
	length := 0
	for code := 0; code < lengthCodes-1; code++ {
		baseLength[code] = length
		for n := 0; n < 1<<extraLBits[code]; n++ {
			lengthCode[length] = code
			length++
		}
	}
	// Length 258 has its own code with no extra bits.
	lengthCode[length-1] = lengthCodes - 1

	dist := 0
	for code := 0; code < dCodes; code++ {
		baseDist[code] = dist
		dist += 1 << extraDBits[code]
	}

	var count [maxBits + 1]int
	for n := range staticLLen {
		switch {
		case n < 144:
			staticLLen[n] = 8
		case n < 256:
			staticLLen[n] = 9
		case n < 280:
			staticLLen[n] = 7
		default:
			staticLLen[n] = 8
		}
		count[staticLLen[n]]++
	}
	staticLCode = genCodes(staticLLen[:], len(staticLLen)-1, &count)

	for n := range staticDLen {
		staticDLen[n] = 5
		staticDCode[n] = reverseBits(n, 5)
	}
}

func distCode(dist int) int {
	for code := dCodes - 1; code > 0; code-- {
		if dist >= baseDist[code] {
			return code
		}
	}
	return 0
}

func reverseBits(code, n int) int {
	r := 0
	for ; n > 0; n-- {
		r = r<<1 | code&1
		code >>= 1
	}
	return r
}

// genCodes assigns canonical codes, bit-reversed for LSB-first output.
func genCodes(lens []int, maxCode int, blCount *[maxBits + 1]int) []int {
	var next [maxBits + 1]int
	code := 0
	for bits := 1; bits <= maxBits; bits++ {
		code = (code + blCount[bits-1]) << 1
		next[bits] = code
	}
	codes := make([]int, len(lens))
	for n := 0; n <= maxCode; n++ {
		l := lens[n]
		if l == 0 {
			continue
		}
		codes[n] = reverseBits(next[l], l)
		next[l]++
	}
	return codes
}

// huffTree holds one dynamic tree and its static counterpart, if any.
type huffTree struct {
	freq []int
	len  []int
	dad  []int
	code []int

	elems     int
	maxCode   int
	maxLength int
	staticLen []int
	extra     []int
	extraBase int
}

func newHuffTree(size, elems, maxLength, extraBase int, extra, staticLen []int) *huffTree {
	return &huffTree{
		freq:      make([]int, size),
		len:       make([]int, size),
		dad:       make([]int, size),
		elems:     elems,
		maxLength: maxLength,
		staticLen: staticLen,
		extra:     extra,
		extraBase: extraBase,
	}
}

type symbol struct {
	dist int // 0 for a literal
	lc   int // literal byte, or match length minus minMatch
}

type deflater struct {
	in  []byte
	pos int

	window []byte
	prev   []int
	head   []int
	insH   int

	strstart   int
	blockStart int
	lookahead  int

	matchLength    int
	prevLength     int
	matchAvailable bool
	matchStart     int
	prevMatch      int

	out    []byte
	bitBuf uint64
	nbits  uint

	ltree, dtree, bltree *huffTree
	heap                 [heapSize]int
	heapLen, heapMax     int
	depth                [heapSize]int
	blCount              [maxBits + 1]int
	syms                 []symbol
	optLen, staticLen    int
}

// deflate returns the raw deflate stream zlib produces for data at level 6
// with a 32K window and memLevel 8.
func deflate(data []byte) []byte {
	d := &deflater{
		in:          data,
		window:      make([]byte, 2*windowSize),
		prev:        make([]int, windowSize),
		head:        make([]int, hashSize),
		matchLength: minMatch - 1,
		prevLength:  minMatch - 1,
		out:         make([]byte, 0, len(data)/2+16),
		syms:        make([]symbol, 0, symBufSize),
		ltree:       newHuffTree(heapSize, lCodes, maxBits, literals+1, extraLBits[:], staticLLen[:]),
		dtree:       newHuffTree(2*dCodes+1, dCodes, maxBits, 0, extraDBits[:], staticDLen[:]),
		bltree:      newHuffTree(2*blCodes+1, blCodes, maxBLBits, 0, extraBLBits[:], nil),
	}
	d.initBlock()
	d.run()
	return d.out
}

func (d *deflater) initBlock() {
	for _, t := range []*huffTree{d.ltree, d.dtree, d.bltree} {
		for n := 0; n < t.elems; n++ {
			t.freq[n] = 0
		}
	}
	d.ltree.freq[endBlock] = 1
	d.optLen, d.staticLen = 0, 0
	d.syms = d.syms[:0]
}

func (d *deflater) sendBits(value, length int) {
	d.bitBuf |= uint64(value) << d.nbits
	d.nbits += uint(length)
	for d.nbits >= 8 {
		d.out = append(d.out, byte(d.bitBuf))
		d.bitBuf >>= 8
		d.nbits -= 8
	}
}

func (d *deflater) alignToByte() {
	if d.nbits > 0 {
		d.out = append(d.out, byte(d.bitBuf))
	}
	d.bitBuf, d.nbits = 0, 0
}

// fillWindow reads input until at least minLookahead bytes are buffered,
// sliding the upper half of the window down when it runs out of room.
func (d *deflater) fillWindow() {
	for {
		more := len(d.window) - d.lookahead - d.strstart
		if d.strstart >= windowSize+maxDist {
			copy(d.window, d.window[windowSize:len(d.window)-more])
			d.matchStart -= windowSize
			d.strstart -= windowSize
			d.blockStart -= windowSize
			slide(d.head)
			slide(d.prev)
			more += windowSize
		}
		if d.pos == len(d.in) {
			return
		}

		n := copy(d.window[d.strstart+d.lookahead:d.strstart+d.lookahead+more], d.in[d.pos:])
		d.pos += n
		d.lookahead += n

		if d.lookahead >= minMatch {
			d.insH = (int(d.window[d.strstart])<<hashShift ^ int(d.window[d.strstart+1])) & hashMask
		}
		if d.lookahead >= minLookahead || d.pos == len(d.in) {
			return
		}
	}
}

func slide(chain []int) {
	for i, m := range chain {
		if m >= windowSize {
			chain[i] = m - windowSize
		} else {
			chain[i] = 0
		}
	}
}

// insertString links position s into its hash chain and returns the
// previous head of that chain.
func (d *deflater) insertString(s int) int {
	d.insH = (d.insH<<hashShift ^ int(d.window[s+minMatch-1])) & hashMask
	h := d.head[d.insH]
	d.prev[s&windowMask] = h
	d.head[d.insH] = s
	return h
}

func (d *deflater) longestMatch(cur int) int {
	w := d.window
	chain := maxChain
	scan := d.strstart
	best := d.prevLength
	nice := niceLength
	limit := 0
	if d.strstart > maxDist {
		limit = d.strstart - maxDist
	}
	strend := d.strstart + maxMatch
	scanEnd1 := w[scan+best-1]
	scanEnd := w[scan+best]

	if d.prevLength >= goodLength {
		chain >>= 2
	}
	if nice > d.lookahead {
		nice = d.lookahead
	}

	for {
		m := cur
		if w[m+best] == scanEnd && w[m+best-1] == scanEnd1 && w[m] == w[scan] && w[m+1] == w[scan+1] {
			s, t := scan+2, m+2
			for s < strend && w[s] == w[t] {
				s++
				t++
			}
			if n := s - scan; n > best {
				d.matchStart = cur
				best = n
				if n >= nice {
					break
				}
				scanEnd1 = w[scan+best-1]
				scanEnd = w[scan+best]
			}
		}
		cur = d.prev[cur&windowMask]
		if cur <= limit {
			break
		}
		chain--
		if chain == 0 {
			break
		}
	}
	if best <= d.lookahead {
		return best
	}
	return d.lookahead
}

// tally records a symbol and reports whether the block buffer is full.
func (d *deflater) tally(dist, lc int) bool {
	d.syms = append(d.syms, symbol{dist: dist, lc: lc})
	if dist == 0 {
		d.ltree.freq[lc]++
	} else {
		d.ltree.freq[lengthCode[lc]+literals+1]++
		d.dtree.freq[distCode(dist-1)]++
	}
	return len(d.syms) == symBufSize-1
}

func (d *deflater) flushBlock(last bool) {
	var stored []byte
	if d.blockStart >= 0 {
		stored = d.window[d.blockStart:d.strstart]
	}
	d.flushTrees(stored, d.strstart-d.blockStart, last)
	d.blockStart = d.strstart
}

// run is the lazy-matching loop: a match found at one position is emitted
// only if the next position does not yield a longer one.
func (d *deflater) run() {
	for {
		if d.lookahead < minLookahead {
			d.fillWindow()
			if d.lookahead == 0 {
				break
			}
		}

		head := 0
		if d.lookahead >= minMatch {
			head = d.insertString(d.strstart)
		}

		d.prevLength = d.matchLength
		d.prevMatch = d.matchStart
		d.matchLength = minMatch - 1

		if head != 0 && d.prevLength < maxLazy && d.strstart-head <= maxDist {
			d.matchLength = d.longestMatch(head)
			if d.matchLength == minMatch && d.strstart-d.matchStart > tooFar {
				d.matchLength = minMatch - 1
			}
		}

		switch {
		case d.prevLength >= minMatch && d.matchLength <= d.prevLength:
			maxInsert := d.strstart + d.lookahead - minMatch
			full := d.tally(d.strstart-1-d.prevMatch, d.prevLength-minMatch)
			d.lookahead -= d.prevLength - 1
			for n := d.prevLength - 2; n > 0; n-- {
				d.strstart++
				if d.strstart <= maxInsert {
					d.insertString(d.strstart)
				}
			}
			d.matchAvailable = false
			d.matchLength = minMatch - 1
			d.strstart++
			if full {
				d.flushBlock(false)
			}
		case d.matchAvailable:
			if d.tally(0, int(d.window[d.strstart-1])) {
				d.flushBlock(false)
			}
			d.strstart++
			d.lookahead--
		default:
			d.matchAvailable = true
			d.strstart++
			d.lookahead--
		}
	}
	if d.matchAvailable {
		d.tally(0, int(d.window[d.strstart-1]))
		d.matchAvailable = false
	}
	d.flushBlock(true)
}

// flushTrees emits the buffered symbols as whichever of a stored, fixed or
// dynamic block is smallest, preferring fixed over dynamic on a tie.
func (d *deflater) flushTrees(stored []byte, storedLen int, last bool) {
	d.buildTree(d.ltree)
	d.buildTree(d.dtree)
	maxBLIndex := d.buildBLTree()

	optLenB := (d.optLen + 3 + 7) >> 3
	staticLenB := (d.staticLen + 3 + 7) >> 3
	if staticLenB <= optLenB {
		optLenB = staticLenB
	}

	lastBit := 0
	if last {
		lastBit = 1
	}
	switch {
	case stored != nil && storedLen+4 <= optLenB:
		d.sendBits(lastBit, 3)
		d.alignToByte()
		d.out = append(d.out, byte(storedLen), byte(storedLen>>8), ^byte(storedLen), ^byte(storedLen>>8))
		d.out = append(d.out, stored...)
	case staticLenB == optLenB:
		d.sendBits(2|lastBit, 3)
		d.compressBlock(staticLCode, staticLLen[:], staticDCode[:], staticDLen[:])
	default:
		d.sendBits(4|lastBit, 3)
		lcodes, dcodes := d.ltree.maxCode+1, d.dtree.maxCode+1
		d.sendBits(lcodes-257, 5)
		d.sendBits(dcodes-1, 5)
		d.sendBits(maxBLIndex+1-4, 4)
		for rank := 0; rank <= maxBLIndex; rank++ {
			d.sendBits(d.bltree.len[blOrder[rank]], 3)
		}
		d.sendTree(d.ltree, lcodes-1)
		d.sendTree(d.dtree, dcodes-1)
		d.compressBlock(d.ltree.code, d.ltree.len, d.dtree.code, d.dtree.len)
	}
	d.initBlock()
	if last {
		d.alignToByte()
	}
}

func (d *deflater) compressBlock(lcode, llen, dcode, dlen []int) {
	for _, s := range d.syms {
		if s.dist == 0 {
			d.sendBits(lcode[s.lc], llen[s.lc])
			continue
		}
		code := lengthCode[s.lc]
		d.sendBits(lcode[code+literals+1], llen[code+literals+1])
		if extra := extraLBits[code]; extra > 0 {
			d.sendBits(s.lc-baseLength[code], extra)
		}
		dist := s.dist - 1
		code = distCode(dist)
		d.sendBits(dcode[code], dlen[code])
		if extra := extraDBits[code]; extra > 0 {
			d.sendBits(dist-baseDist[code], extra)
		}
	}
	d.sendBits(lcode[endBlock], llen[endBlock])
}

// smaller orders heap nodes by frequency, then by subtree depth.
func (d *deflater) smaller(t *huffTree, n, m int) bool {
	return t.freq[n] < t.freq[m] || (t.freq[n] == t.freq[m] && d.depth[n] <= d.depth[m])
}

func (d *deflater) downHeap(t *huffTree, k int) {
	v := d.heap[k]
	for j := k << 1; j <= d.heapLen; j <<= 1 {
		if j < d.heapLen && d.smaller(t, d.heap[j+1], d.heap[j]) {
			j++
		}
		if d.smaller(t, v, d.heap[j]) {
			break
		}
		d.heap[k] = d.heap[j]
		k = j
	}
	d.heap[k] = v
}

func (d *deflater) buildTree(t *huffTree) {
	d.heapLen = 0
	d.heapMax = heapSize
	maxCode := -1
	for n := 0; n < t.elems; n++ {
		if t.freq[n] != 0 {
			d.heapLen++
			d.heap[d.heapLen] = n
			maxCode = n
			d.depth[n] = 0
		} else {
			t.len[n] = 0
		}
	}

	// At least two codes of non-zero frequency are needed.
	for d.heapLen < 2 {
		node := 0
		if maxCode < 2 {
			maxCode++
			node = maxCode
		}
		d.heapLen++
		d.heap[d.heapLen] = node
		t.freq[node] = 1
		d.depth[node] = 0
		d.optLen--
		if t.staticLen != nil {
			d.staticLen -= t.staticLen[node]
		}
	}
	t.maxCode = maxCode

	for n := d.heapLen / 2; n >= 1; n-- {
		d.downHeap(t, n)
	}

	node := t.elems
	for {
		n := d.heap[1]
		d.heap[1] = d.heap[d.heapLen]
		d.heapLen--
		d.downHeap(t, 1)
		m := d.heap[1]

		d.heapMax--
		d.heap[d.heapMax] = n
		d.heapMax--
		d.heap[d.heapMax] = m

		t.freq[node] = t.freq[n] + t.freq[m]
		d.depth[node] = max(d.depth[n], d.depth[m]) + 1
		t.dad[n], t.dad[m] = node, node

		d.heap[1] = node
		node++
		d.downHeap(t, 1)
		if d.heapLen < 2 {
			break
		}
	}
	d.heapMax--
	d.heap[d.heapMax] = d.heap[1]

	d.genBitLengths(t)
	t.code = genCodes(t.len, maxCode, &d.blCount)
}

// genBitLengths assigns code lengths from the tree, then pushes leaves that
// exceed maxLength back up so the code stays prefix-free.
func (d *deflater) genBitLengths(t *huffTree) {
	for i := range d.blCount {
		d.blCount[i] = 0
	}
	t.len[d.heap[d.heapMax]] = 0

	overflow := 0
	h := d.heapMax + 1
	for ; h < heapSize; h++ {
		n := d.heap[h]
		bits := t.len[t.dad[n]] + 1
		if bits > t.maxLength {
			bits = t.maxLength
			overflow++
		}
		t.len[n] = bits
		if n > t.maxCode {
			continue
		}
		d.blCount[bits]++
		xbits := 0
		if n >= t.extraBase {
			xbits = t.extra[n-t.extraBase]
		}
		f := t.freq[n]
		d.optLen += f * (bits + xbits)
		if t.staticLen != nil {
			d.staticLen += f * (t.staticLen[n] + xbits)
		}
	}
	if overflow == 0 {
		return
	}

	for overflow > 0 {
		bits := t.maxLength - 1
		for d.blCount[bits] == 0 {
			bits--
		}
		d.blCount[bits]--
		d.blCount[bits+1] += 2
		d.blCount[t.maxLength]--
		overflow -= 2
	}

	for bits := t.maxLength; bits != 0; bits-- {
		for n := d.blCount[bits]; n != 0; {
			h--
			m := d.heap[h]
			if m > t.maxCode {
				continue
			}
			if t.len[m] != bits {
				d.optLen += (bits - t.len[m]) * t.freq[m]
				t.len[m] = bits
			}
			n--
		}
	}
}

// runLimits returns the repeat-count bounds for the run that follows.
func runLimits(curlen, nextlen int) (maxCount, minCount int) {
	switch {
	case nextlen == 0:
		return 138, 3
	case curlen == nextlen:
		return 6, 3
	default:
		return 7, 4
	}
}

// scanTree counts the code-length symbols needed to send t.
func (d *deflater) scanTree(t *huffTree, maxCode int) {
	bl := d.bltree
	prevlen := -1
	nextlen := t.len[0]
	count := 0
	maxCount, minCount := 7, 4
	if nextlen == 0 {
		maxCount, minCount = 138, 3
	}
	t.len[maxCode+1] = 0xffff // guard

	for n := 0; n <= maxCode; n++ {
		curlen := nextlen
		nextlen = t.len[n+1]
		count++
		if count < maxCount && curlen == nextlen {
			continue
		}
		switch {
		case count < minCount:
			bl.freq[curlen] += count
		case curlen != 0:
			if curlen != prevlen {
				bl.freq[curlen]++
			}
			bl.freq[rep3to6]++
		case count <= 10:
			bl.freq[repz3to10]++
		default:
			bl.freq[repz11to138]++
		}
		count = 0
		prevlen = curlen
		maxCount, minCount = runLimits(curlen, nextlen)
	}
}

func (d *deflater) sendTree(t *huffTree, maxCode int) {
	bl := d.bltree
	send := func(c int) { d.sendBits(bl.code[c], bl.len[c]) }

	prevlen := -1
	nextlen := t.len[0]
	count := 0
	maxCount, minCount := 7, 4
	if nextlen == 0 {
		maxCount, minCount = 138, 3
	}

	for n := 0; n <= maxCode; n++ {
		curlen := nextlen
		nextlen = t.len[n+1]
		count++
		if count < maxCount && curlen == nextlen {
			continue
		}
		switch {
		case count < minCount:
			for ; count > 0; count-- {
				send(curlen)
			}
		case curlen != 0:
			if curlen != prevlen {
				send(curlen)
				count--
			}
			send(rep3to6)
			d.sendBits(count-3, 2)
		case count <= 10:
			send(repz3to10)
			d.sendBits(count-3, 3)
		default:
			send(repz11to138)
			d.sendBits(count-11, 7)
		}
		count = 0
		prevlen = curlen
		maxCount, minCount = runLimits(curlen, nextlen)
	}
}

func (d *deflater) buildBLTree() int {
	d.scanTree(d.ltree, d.ltree.maxCode)
	d.scanTree(d.dtree, d.dtree.maxCode)
	d.buildTree(d.bltree)

	maxBLIndex := blCodes - 1
	for ; maxBLIndex >= 3; maxBLIndex-- {
		if d.bltree.len[blOrder[maxBLIndex]] != 0 {
			break
		}
	}
	d.optLen += 3*(maxBLIndex+1) + 5 + 5 + 4
	return maxBLIndex
}
