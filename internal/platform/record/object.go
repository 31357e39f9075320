package record

// Field is one key/value entry of an Object.
type Field struct {
	Key   string
	Value any
}

// Object is an insertion-ordered mapping. Values are scalars, nested *Object
// values or opaque values copied through unchanged.
type Object struct {
	fields []Field
	index  map[string]int
}

func NewObject(fields ...Field) *Object {
	obj := &Object{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		obj.Set(f.Key, f.Value)
	}
	return obj
}

// Set stores value under key. An existing key keeps its position.
func (o *Object) Set(key string, value any) {
	if o.index == nil {
		o.index = make(map[string]int)
	}
	if idx, ok := o.index[key]; ok {
		o.fields[idx].Value = value
		return
	}
	o.index[key] = len(o.fields)
	o.fields = append(o.fields, Field{Key: key, Value: value})
}

func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	idx, ok := o.index[key]
	if !ok {
		return nil, false
	}
	return o.fields[idx].Value, true
}

func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.fields)
}

// Fields returns a copy of the entries in insertion order.
func (o *Object) Fields() []Field {
	if o == nil {
		return nil
	}
	out := make([]Field, len(o.fields))
	copy(out, o.fields)
	return out
}

func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, 0, len(o.fields))
	for _, f := range o.fields {
		out = append(out, f.Key)
	}
	return out
}

// Clone returns a shallow copy; nested objects are shared.
func (o *Object) Clone() *Object {
	if o == nil {
		return NewObject()
	}
	return NewObject(o.fields...)
}
