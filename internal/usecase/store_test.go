package usecase

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/semmidev/stashd/internal/domain"
)

// memStore is an in-memory RemoteStore. Failed calls never register anything.
type memStore struct {
	mu      sync.Mutex
	folders []domain.Folder
	objects map[string]memObject
	nextID  int
	now     func() time.Time

	findErr     error
	createErr   error
	listErr     error
	deleteErrs  map[string]error
	shortWrite  int64
	createdDirs int
	uploads     int
	deletes     []string
}

type memObject struct {
	domain.RemoteObject
	parent string
	data   []byte
}

func newMemStore() *memStore {
	return &memStore{
		objects:    make(map[string]memObject),
		deleteErrs: make(map[string]error),
		now:        time.Now,
	}
}

func (s *memStore) Name() string { return "memory" }

func (s *memStore) id() string {
	s.nextID++
	return fmt.Sprintf("id-%03d", s.nextID)
}

func (s *memStore) FindFolders(ctx context.Context, name string) ([]domain.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	var out []domain.Folder
	for _, f := range s.folders {
		if f.Name == name {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *memStore) CreateFolder(ctx context.Context, name string) (domain.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := domain.Folder{ID: s.id(), Name: name}
	s.folders = append(s.folders, f)
	s.createdDirs++
	return f, nil
}

func (s *memStore) CreateObject(ctx context.Context, spec domain.ObjectSpec, body io.Reader) (domain.RemoteObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	if s.createErr != nil {
		return domain.RemoteObject{}, s.createErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return domain.RemoteObject{}, fmt.Errorf("%w: %w", domain.ErrUploadIncomplete, err)
	}
	obj := memObject{
		RemoteObject: domain.RemoteObject{
			ID:          s.id(),
			Name:        spec.Name,
			Size:        int64(len(data)) - s.shortWrite,
			CreatedTime: s.now(),
		},
		parent: spec.Parent,
		data:   data,
	}
	s.objects[obj.ID] = obj
	return obj.RemoteObject, nil
}

func (s *memStore) ListObjects(ctx context.Context, q domain.ObjectQuery) ([]domain.RemoteObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.RemoteObject
	for _, o := range s.objects {
		if o.parent == q.Parent && strings.HasPrefix(o.Name, q.NamePrefix) {
			out = append(out, o.RemoteObject)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memStore) DeleteObject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, id)
	if err := s.deleteErrs[id]; err != nil {
		return err
	}
	delete(s.objects, id)
	return nil
}

// seed places an existing archive in parent without counting as an upload.
func (s *memStore) seed(parent, name string, created time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.objects[id] = memObject{
		RemoteObject: domain.RemoteObject{ID: id, Name: name, Size: 1, CreatedTime: created},
		parent:       parent,
	}
	return id
}

func (s *memStore) names(parent string) []string {
	objs, _ := s.ListObjects(context.Background(), domain.ObjectQuery{Parent: parent})
	out := make([]string, 0, len(objs))
	for _, o := range objs {
		out = append(out, o.Name)
	}
	return out
}

type recordingNotifier struct {
	calls   int
	success bool
	message string
}

func (n *recordingNotifier) Notify(ctx context.Context, success bool, message string) error {
	n.calls++
	n.success = success
	n.message = message
	return nil
}
