// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package buffer provides the byte container passed between stack layers.
// A VectorisedView is a scatter/gather sequence of views over caller-owned
// memory; layers prepend or strip headers without copying payloads.
package buffer

// View is a contiguous slice of a packet.
type View []byte

// NewView allocates a zeroed View of the given size.
func NewView(size int) View { return make(View, size) }

// NewViewFromBytes returns a View holding a copy of b.
func NewViewFromBytes(b []byte) View {
	v := make(View, len(b))
	copy(v, b)
	return v
}

// TrimFront removes the first count bytes from v.
func (v *View) TrimFront(count int) {
	*v = (*v)[count:]
}

// CapLength truncates v to length bytes.
func (v *View) CapLength(length int) {
	if length < len(*v) {
		*v = (*v)[:length]
	}
}

// ToVectorisedView wraps v in a single-view VectorisedView.
func (v View) ToVectorisedView() VectorisedView {
	if len(v) == 0 {
		return VectorisedView{}
	}
	return NewVectorisedView(len(v), []View{v})
}

// VectorisedView is an ordered sequence of views making up one packet.
type VectorisedView struct {
	views []View
	size  int
}

// NewVectorisedView creates a VectorisedView from views. size must be the
// sum of the view lengths.
func NewVectorisedView(size int, views []View) VectorisedView {
	return VectorisedView{views: views, size: size}
}

// Views returns the underlying views.
func (vv VectorisedView) Views() []View { return vv.views }

// Size returns the total byte count.
func (vv VectorisedView) Size() int { return vv.size }

// AppendView adds v to the end of vv.
func (vv *VectorisedView) AppendView(v View) {
	if len(v) == 0 {
		return
	}
	vv.views = append(vv.views, v)
	vv.size += len(v)
}

// TrimFront removes the first count bytes.
func (vv *VectorisedView) TrimFront(count int) {
	for count > 0 && len(vv.views) > 0 {
		if count < len(vv.views[0]) {
			vv.size -= count
			vv.views[0].TrimFront(count)
			return
		}
		count -= len(vv.views[0])
		vv.size -= len(vv.views[0])
		vv.views = vv.views[1:]
	}
}

// CapLength truncates the packet to length bytes.
func (vv *VectorisedView) CapLength(length int) {
	if length < 0 {
		length = 0
	}
	if vv.size <= length {
		return
	}
	vv.size = length
	for i := range vv.views {
		if len(vv.views[i]) >= length {
			if length == 0 {
				vv.views = vv.views[:i]
			} else {
				vv.views[i].CapLength(length)
				vv.views = vv.views[:i+1]
			}
			return
		}
		length -= len(vv.views[i])
	}
}

// ToView flattens vv into a single contiguous View.
func (vv VectorisedView) ToView() View {
	if len(vv.views) == 1 {
		return vv.views[0]
	}
	out := make(View, 0, vv.size)
	for _, v := range vv.views {
		out = append(out, v...)
	}
	return out
}

// Clone returns a deep copy of vv.
func (vv VectorisedView) Clone() VectorisedView {
	return NewViewFromBytes(vv.ToView()).ToVectorisedView()
}
