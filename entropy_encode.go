package pik

import "sort"

const kHuffmanMaxBitLength = 16

// A node of a Huffman tree.
type HuffmanTree struct {
	total_count_          uint32
	index_left_           int16
	index_right_or_value_ int16
}

func SetDepth(p0 int, pool []HuffmanTree, depth []uint8, max_depth int) bool {
	var stack [17]int
	level := 0
	p := p0
	assert(max_depth <= 16)
	stack[0] = -1
	for {
		if pool[p].index_left_ >= 0 {
			level++
			if level > max_depth {
				return false
			}
			stack[level] = int(pool[p].index_right_or_value_)
			p = int(pool[p].index_left_)
			continue
		} else {
			depth[pool[p].index_right_or_value_] = uint8(level)
		}
		for level >= 0 && stack[level] == -1 {
			level--
		}
		if level < 0 {
			return true
		}
		p = stack[level]
		stack[level] = -1
	}
}

// Sort the root nodes, least popular first.
func SortHuffmanTree(v0, v1 *HuffmanTree) bool {
	if v0.total_count_ != v1.total_count_ {
		return v0.total_count_ < v1.total_count_
	}
	return v0.index_right_or_value_ > v1.index_right_or_value_
}

// Builds a Huffman tree of limited depth over the given population
// counts and fills in the bit depth of every used symbol.
//
// count_limit is the value that is to be faked as the minimum count
// and this minimum is raised until the tree fits in tree_limit bits.
// See http://en.wikipedia.org/wiki/Huffman_coding
func CreateHuffmanTree(data []uint32, length, tree_limit int, depth []uint8) {
	tree := make([]HuffmanTree, 2*length+1)
	for count_limit := uint32(1); ; count_limit *= 2 {
		n := 0
		for i := length; i != 0; {
			i--
			if data[i] != 0 {
				count := std_maxUint32(data[i], count_limit)
				tree[n] = HuffmanTree{count, -1, int16(i)}
				n++
			}
		}

		if n == 1 {
			depth[tree[0].index_right_or_value_] = 1 // Only one element.
			break
		}

		sort.Slice(tree[:n], func(i, j int) bool {
			return SortHuffmanTree(&tree[i], &tree[j])
		})

		// The nodes are:
		// [0, n): the sorted leaf nodes that we start with.
		// [n]: we add a sentinel here.
		// [n + 1, 2n): new parent nodes are added here, starting from
		//              (n+1). These are naturally in ascending order.
		// [2n]: we add a sentinel at the end as well.
		// There will be (2n+1) elements at the end.
		sentinel := HuffmanTree{^uint32(0), -1, -1}
		tree[n] = sentinel
		tree[n+1] = sentinel

		i := 0     // Points to the next leaf node.
		j := n + 1 // Points to the next non-leaf node.
		for k := n - 1; k != 0; k-- {
			var left, right int
			if tree[i].total_count_ <= tree[j].total_count_ {
				left = i
				i++
			} else {
				left = j
				j++
			}
			if tree[i].total_count_ <= tree[j].total_count_ {
				right = i
				i++
			} else {
				right = j
				j++
			}

			// The sentinel node becomes the parent node.
			j_end := 2*n - k
			tree[j_end].total_count_ =
				tree[left].total_count_ + tree[right].total_count_
			tree[j_end].index_left_ = int16(left)
			tree[j_end].index_right_or_value_ = int16(right)

			// Add back the last sentinel node.
			tree[j_end+1] = sentinel
		}
		if SetDepth(2*n-1, tree, depth, tree_limit) {
			// We need to pack the Huffman tree in tree_limit bits. If this was
			// not successful, add fake entities to the lowest values and retry.
			break
		}
	}
}

// Builds a canonical Huffman code description from the given bit
// depths: counts[n] is the number of symbols coded with n bits, and
// values lists the symbols in order of increasing bit length.
func BuildHuffmanCode(depth []uint8, counts, values []int) {
	for i := 0; i < len(depth); i++ {
		if depth[i] > 0 {
			counts[depth[i]]++
		}
	}
	var offset [kHuffmanMaxBitLength + 1]int
	for i := 1; i <= kHuffmanMaxBitLength; i++ {
		offset[i] = offset[i-1] + counts[i-1]
	}
	for i := 0; i < len(depth); i++ {
		if depth[i] > 0 {
			values[offset[depth[i]]] = i
			offset[depth[i]]++
		}
	}
}

type HuffmanCodeTable struct {
	depth [kHistogramSize]byte
	code  [kHistogramSize]int
}

// Expands a canonical code description back into per-symbol codes.
func BuildHuffmanCodeTable(counts, values []int, table *HuffmanCodeTable) {
	var huffcode [kHistogramSize]int
	var huffsize [kHistogramSize]int
	p := 0
	for l := 1; l <= kHuffmanMaxBitLength; l++ {
		for i := counts[l]; i > 0; i-- {
			huffsize[p] = l
			p++
		}
	}

	if p == 0 {
		return
	}

	lastp := p

	code := 0
	si := huffsize[0]
	p = 0
	for p < lastp && huffsize[p] != 0 {
		for p < lastp && huffsize[p] == si {
			huffcode[p] = code
			p++
			code++
		}
		code <<= 1
		si++
	}
	for p = 0; p < lastp; p++ {
		i := values[p]
		table.depth[i] = byte(huffsize[p])
		table.code[i] = huffcode[p]
	}
}

// Decoding tables in the classic mincode/maxcode/valptr form.
type HuffmanDecodeTable struct {
	mincode [kHuffmanMaxBitLength + 1]int
	maxcode [kHuffmanMaxBitLength + 1]int
	valptr  [kHuffmanMaxBitLength + 1]int
	values  []int
}

func BuildHuffmanDecodeTable(counts, values []int, table *HuffmanDecodeTable) {
	table.values = values
	code := 0
	p := 0
	for l := 1; l <= kHuffmanMaxBitLength; l++ {
		if counts[l] == 0 {
			table.mincode[l] = 0
			table.maxcode[l] = -1
		} else {
			table.valptr[l] = p
			table.mincode[l] = code
			code += counts[l]
			p += counts[l]
			table.maxcode[l] = code - 1
		}
		code <<= 1
	}
}

// Reads one Huffman coded symbol. Returns -1 on an invalid code or
// input overrun.
func (table *HuffmanDecodeTable) ReadSymbol(br *BitReader) int {
	code := 0
	for l := 1; l <= kHuffmanMaxBitLength; l++ {
		code = (code << 1) | br.ReadBit()
		if br.overrun {
			return -1
		}
		if code <= table.maxcode[l] {
			return table.values[table.valptr[l]+code-table.mincode[l]]
		}
	}
	return -1
}
