package aigc

import "encoding/json"

// MarshalBinary implements the encoding.BinaryMarshaler interface.
func (z *Content) MarshalBinary() (data []byte, err error) {
	data, err = json.Marshal(z)
	return
}

// UnmarshalBinary unmarshal a binary representation of itself. for redis result.Scan
func (z *Content) UnmarshalBinary(data []byte) error {
	var t Content
	err := json.Unmarshal(data, &t)
	if err == nil {
		*z = t
	}
	return err
}

// MarshalBinary implements the encoding.BinaryMarshaler interface.
func (z Contents) MarshalBinary() (data []byte, err error) {
	data, err = json.Marshal(z)
	return
}

// UnmarshalBinary unmarshal a binary representation of itself.
func (z *Contents) UnmarshalBinary(data []byte) error {
	var t Contents
	err := json.Unmarshal(data, &t)
	if err == nil {
		*z = t
	}
	return err
}
