// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package buffer implements buffers shared between a connection worker and its owner:
//	DoubleBuffer - a write-side/read-side pair used by channels.
//	IoBuffer - a pinned byte buffer with an overlapped descriptor (windows).
package buffer
