package rpc

import (
	"context"
	"fmt"
	"reflect"

	"erpcgo/codec"
	"erpcgo/errs"
)

// ReplyWriter encodes a successful call's return values into the reply
// codec. A handler returns one of these instead of writing the reply
// itself, because the reply's status word must be written before any
// return value, and the handler doesn't know the call's final status
// until after it has already decoded its arguments — splitting "decode
// args and compute" from "encode the reply" keeps every write honoring
// the codec's append-only cursor invariant (§9) with no buffer reuse or
// overwrite required.
type ReplyWriter func(reply *codec.Codec)

// Service is what generated code (or a hand-written reflection adapter)
// implements to answer invocations for one IDL-defined interface.
type Service interface {
	ID() uint8
	Name() string
	// Invoke decodes arguments for methodID from args and runs the
	// handler. On success it returns a non-nil ReplyWriter the caller
	// must invoke (after writing the status word) to encode return
	// values; on a handler error the ReplyWriter is nil and nothing
	// further is written. For a oneway message the Server sends no reply
	// and does not call the ReplyWriter.
	Invoke(ctx context.Context, methodID uint8, args *codec.Codec) (ReplyWriter, error)
}

// ServiceRegistry maps a numeric service ID to its Service, the
// dispatch table a Server consults for every incoming invocation.
//
// Grounded on the prior implementation's server.Server.serviceMap (map[string]*service),
// keyed by the wire's numeric service ID instead of the struct's name,
// since §3's header carries an 8-bit service id, not a string.
type ServiceRegistry struct {
	services map[uint8]Service
}

// NewServiceRegistry returns an empty registry.
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{services: make(map[uint8]Service)}
}

// Add registers svc under its own ID, replacing any previous service at
// that ID.
func (r *ServiceRegistry) Add(svc Service) {
	r.services[svc.ID()] = svc
}

// Lookup returns the service registered for id, if any.
func (r *ServiceRegistry) Lookup(id uint8) (Service, bool) {
	svc, ok := r.services[id]
	return svc, ok
}

// errorType is used to check a reflected method's error return value —
// unchanged from the prior implementation's server/service.go.
var errorType = reflect.TypeOf((*error)(nil)).Elem()
var ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
var codecPtrType = reflect.TypeOf((*codec.Codec)(nil))
var replyWriterType = reflect.TypeOf((*ReplyWriter)(nil)).Elem()

// ReflectService adapts a plain Go struct into a Service by reflection,
// for code that registers handlers directly instead of going through a
// code generator. Methods must have the shape:
//
//	func (recv *T) MethodName(ctx context.Context, args *codec.Codec) (rpc.ReplyWriter, error)
//
// and are assigned method IDs by sorted method name — callers that need
// stable wire IDs across versions should use generated Service
// implementations instead, where IDs come from the IDL.
//
// Grounded on the prior implementation's server.NewService/RegisterMethods,
// generalized from "match (*Args, *Reply) error" to "match
// (context.Context, *codec.Codec) (ReplyWriter, error)" — the streaming
// codec and a deferred encode closure take the place of a single
// marshaled args/reply struct pair.
type ReflectService struct {
	id      uint8
	name    string
	rcvr    reflect.Value
	methods []reflect.Method
}

// NewReflectService builds a Service from rcvr (a pointer to a struct),
// assigning methodID 0, 1, 2... to its eligible exported methods in the
// order reflect.Type.Method enumerates them (alphabetical, per the
// reflect package's documented guarantee).
func NewReflectService(id uint8, rcvr any) (*ReflectService, error) {
	typ := reflect.TypeOf(rcvr)
	if typ == nil || typ.Kind() != reflect.Ptr || typ.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("rpc: rcvr must be a pointer to a struct, got %T", rcvr)
	}

	s := &ReflectService{id: id, name: typ.Elem().Name(), rcvr: reflect.ValueOf(rcvr)}
	for i := 0; i < typ.NumMethod(); i++ {
		m := typ.Method(i)
		if m.Type.NumIn() != 3 || m.Type.NumOut() != 2 {
			continue
		}
		if m.Type.Out(0) != replyWriterType || m.Type.Out(1) != errorType {
			continue
		}
		if m.Type.In(1) != ctxType || m.Type.In(2) != codecPtrType {
			continue
		}
		s.methods = append(s.methods, m)
	}
	return s, nil
}

func (s *ReflectService) ID() uint8    { return s.id }
func (s *ReflectService) Name() string { return s.name }

func (s *ReflectService) Invoke(ctx context.Context, methodID uint8, args *codec.Codec) (ReplyWriter, error) {
	if int(methodID) >= len(s.methods) {
		return nil, errs.New(errs.StatusUnknownName, fmt.Sprintf("%s: no method id %d", s.name, methodID))
	}
	m := s.methods[methodID]
	results := m.Func.Call([]reflect.Value{s.rcvr, reflect.ValueOf(ctx), reflect.ValueOf(args)})
	writer, _ := results[0].Interface().(ReplyWriter)
	err, _ := results[1].Interface().(error)
	if err != nil {
		return nil, err
	}
	return writer, nil
}
