package device

import "testing"

func TestHostAllocator(t *testing.T) {
	allocator := NewHostAllocator()

	t.Run("Allocate valid size", func(t *testing.T) {
		mem, err := allocator.Allocate(1024, false)
		if err != nil {
			t.Fatalf("Allocate failed with error: %v", err)
		}
		slice, ok := mem.([]byte)
		if !ok {
			t.Fatalf("allocated memory is not a []byte slice")
		}
		if len(slice) != 1024 {
			t.Errorf("expected allocated size to be 1024, got %d", len(slice))
		}
	})

	t.Run("Allocate with NaN fill", func(t *testing.T) {
		mem, err := allocator.Allocate(8, true)
		if err != nil {
			t.Fatalf("Allocate failed with error: %v", err)
		}
		slice := mem.([]byte)
		for i := 0; i < len(slice); i += 4 {
			if slice[i] == 0 && slice[i+1] == 0 && slice[i+2] == 0 && slice[i+3] == 0 {
				t.Errorf("expected NaN fill pattern, got zero bytes at offset %d", i)
			}
		}
	})

	t.Run("Allocate negative size", func(t *testing.T) {
		_, err := allocator.Allocate(-1, false)
		if err == nil {
			t.Fatal("expected an error for negative allocation size, but got nil")
		}
	})

	t.Run("Free", func(t *testing.T) {
		mem, _ := allocator.Allocate(16, false)
		if err := allocator.Free(mem); err != nil {
			t.Errorf("Free() should not return an error for hostAllocator, but got: %v", err)
		}
	})
}
