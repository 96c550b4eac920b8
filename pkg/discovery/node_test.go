package discovery

import "testing"

func TestJSONCodec_RoundTrip(t *testing.T) {
	codec := JSONCodec{}
	cases := []Node{
		{ID: "node1", Address: "10.0.0.1:7946"},
		{ID: "weird id with spaces", Address: "[::1]:7946"},
		{},
	}
	for _, n := range cases {
		b, err := codec.Encode(n)
		if err != nil {
			t.Fatalf("Encode(%+v): %v", n, err)
		}
		got, err := codec.Decode(b)
		if err != nil {
			t.Fatalf("Decode(%s): %v", b, err)
		}
		if got != n {
			t.Fatalf("round trip = %+v, want %+v", got, n)
		}
	}
}

func TestJSONCodec_DecodeGarbage(t *testing.T) {
	if _, err := (JSONCodec{}).Decode([]byte("not json")); err == nil {
		t.Fatalf("Decode of garbage succeeded")
	}
}
