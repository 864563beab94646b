package detection

// mask is a binary image stored as a flat bool array in row-major order,
// matching the pixel layout of models.Image.
type mask struct {
	bits       []bool
	rows, cols int
}

func newMask(rows, cols int) mask {
	return mask{bits: make([]bool, rows*cols), rows: rows, cols: cols}
}

func (m mask) at(row, col int) bool {
	return m.bits[row*m.cols+col]
}

func (m mask) set(row, col int, v bool) {
	m.bits[row*m.cols+col] = v
}

// count returns the number of set pixels.
func (m mask) count() int {
	n := 0
	for _, b := range m.bits {
		if b {
			n++
		}
	}
	return n
}

// erode performs one pass of binary erosion with a 4-connected (cross)
// structuring element. Pixels outside the image count as unset, so the
// outermost border is always eroded.
func (m mask) erode() mask {
	out := newMask(m.rows, m.cols)
	for r := 0; r < m.rows; r++ {
		for c := 0; c < m.cols; c++ {
			if !m.at(r, c) {
				continue
			}
			if r == 0 || r == m.rows-1 || c == 0 || c == m.cols-1 {
				continue
			}
			if m.at(r-1, c) && m.at(r+1, c) && m.at(r, c-1) && m.at(r, c+1) {
				out.set(r, c, true)
			}
		}
	}
	return out
}

// boundingBox returns the bounding box of the set pixels with exclusive
// maxima, and false if the mask is empty.
func (m mask) boundingBox() (BoundingBox, bool) {
	box := BoundingBox{RowMin: m.rows, ColMin: m.cols}
	found := false
	for r := 0; r < m.rows; r++ {
		for c := 0; c < m.cols; c++ {
			if !m.at(r, c) {
				continue
			}
			found = true
			if r < box.RowMin {
				box.RowMin = r
			}
			if r+1 > box.RowMax {
				box.RowMax = r + 1
			}
			if c < box.ColMin {
				box.ColMin = c
			}
			if c+1 > box.ColMax {
				box.ColMax = c + 1
			}
		}
	}
	return box, found
}

// label assigns a positive label to every 4-connected component of set
// pixels and returns the label image plus the number of components.
// Unset pixels keep label 0.
func (m mask) label() ([]int, int) {
	labels := make([]int, len(m.bits))
	next := 0
	queue := make([]int, 0, len(m.bits)/4)
	visit := func(r, c, label int) {
		if r < 0 || r >= m.rows || c < 0 || c >= m.cols {
			return
		}
		idx := r*m.cols + c
		if m.bits[idx] && labels[idx] == 0 {
			labels[idx] = label
			queue = append(queue, idx)
		}
	}
	for start, b := range m.bits {
		if !b || labels[start] != 0 {
			continue
		}
		next++
		labels[start] = next
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			idx := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			r := idx / m.cols
			c := idx % m.cols
			visit(r-1, c, next)
			visit(r+1, c, next)
			visit(r, c-1, next)
			visit(r, c+1, next)
		}
	}
	return labels, next
}

// componentMask extracts the pixels carrying the given label as a mask.
func componentMask(labels []int, label, rows, cols int) mask {
	m := newMask(rows, cols)
	for i, l := range labels {
		if l == label {
			m.bits[i] = true
		}
	}
	return m
}
