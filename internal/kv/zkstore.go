package kv

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/ovis-hpc/maestro/internal/logging"
	"github.com/samuel/go-zookeeper/zk"
)

// ZKStore is the consensus-backed datastore, implemented on top of
// ZooKeeper, with connection setup, recursive path creation and a
// zk.Logger-to-zap adapter.
type ZKStore struct {
	conn *zk.Conn
}

// Dial connects to the ZooKeeper ensemble described by members
// (host:port strings) with a 3-second session timeout.
func Dial(members []string) (*ZKStore, error) {
	conn, _, err := zk.Connect(members, 3*time.Second)
	if err != nil {
		return nil, err
	}
	conn.SetLogger(&logging.ZkLoggerAdapter{})
	return &ZKStore{conn: conn}, nil
}

func (s *ZKStore) ensurePathRecursive(p string) error {
	dirs := strings.Split(strings.Trim(p, "/"), "/")
	cur := ""
	for _, d := range dirs {
		cur = cur + "/" + d
		exists, _, err := s.conn.Exists(cur)
		if err != nil {
			return err
		}
		if !exists {
			if _, err := s.conn.Create(cur, []byte{}, 0, zk.WorldACL(zk.PermAll)); err != nil && err != zk.ErrNodeExists {
				return err
			}
		}
	}
	return nil
}

func (s *ZKStore) Get(_ context.Context, key string) (string, bool, error) {
	data, _, err := s.conn.Get(key)
	if err == zk.ErrNoNode {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

func (s *ZKStore) Put(_ context.Context, key, value string) error {
	if err := s.ensurePathRecursive(path.Dir(key)); err != nil {
		return err
	}
	exists, stat, err := s.conn.Exists(key)
	if err != nil {
		return err
	}
	if !exists {
		_, err := s.conn.Create(key, []byte(value), 0, zk.WorldACL(zk.PermAll))
		return err
	}
	_, err = s.conn.Set(key, []byte(value), stat.Version)
	return err
}

func (s *ZKStore) List(_ context.Context, prefix string) (map[string]string, error) {
	out := make(map[string]string)
	if err := s.collect(prefix, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ZKStore) collect(p string, out map[string]string) error {
	exists, _, err := s.conn.Exists(p)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if data, _, err := s.conn.Get(p); err == nil && len(data) > 0 {
		out[p] = string(data)
	}
	children, _, err := s.conn.Children(p)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := s.collect(path.Join(p, c), out); err != nil {
			return err
		}
	}
	return nil
}

// DeleteRange deletes the subtree rooted at prefix, depth first, per
// the delete-then-rewrite-then-commit semantics SaveConfig relies on.
func (s *ZKStore) DeleteRange(_ context.Context, prefix string) error {
	return s.deleteRecursive(prefix)
}

func (s *ZKStore) deleteRecursive(p string) error {
	exists, _, err := s.conn.Exists(p)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	children, _, err := s.conn.Children(p)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := s.deleteRecursive(path.Join(p, c)); err != nil {
			return err
		}
	}
	_, stat, err := s.conn.Exists(p)
	if err != nil {
		return err
	}
	if stat != nil {
		if err := s.conn.Delete(p, stat.Version); err != nil && err != zk.ErrNoNode {
			return err
		}
	}
	return nil
}

// Watch re-arms a GetW watch after every fired event, forwarding each
// change until ctx is canceled.
func (s *ZKStore) Watch(ctx context.Context, key string) (<-chan Event, <-chan error) {
	events := make(chan Event, 1)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)
		for {
			_, _, eventCh, err := s.conn.GetW(key)
			if err != nil {
				select {
				case errs <- err:
				case <-ctx.Done():
				}
				return
			}
			select {
			case <-ctx.Done():
				return
			case zkEvent := <-eventCh:
				if zkEvent.Err != nil {
					select {
					case errs <- zkEvent.Err:
					case <-ctx.Done():
					}
					return
				}
				select {
				case events <- Event{Key: key}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, errs
}

func (s *ZKStore) Close() error {
	s.conn.Close()
	return nil
}
